package publish

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// Visibility controls whether a resource is tagged for discovery.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// Asset is an in-memory file of a submission.
type Asset struct {
	Name string // original filename, used for its extension
	Data []byte
}

// Ext returns the lowercased file extension including the dot.
func (a *Asset) Ext() string {
	if a == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(a.Name))
}

// Empty reports whether the asset is missing or has no data.
func (a *Asset) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// Submission holds the user supplied form fields shared by every content type.
type Submission struct {
	Title      string
	Author     string
	Category   string
	Mood       string
	Language   string
	Notes      string
	Album      string
	Tags       []string
	Visibility Visibility

	File  *Asset
	Cover *Asset

	// EditIdentifier republishes an existing resource as a new version.
	EditIdentifier string
}

// Details carries the fields specific to one content type.
//
// The set of implementations is closed: [AudioDetails], [PodcastDetails] and [AudiobookDetails].
type Details interface {
	ContentType() models.ContentType
	sealed()
}

// AudioDetails is the (empty) detail block of a song.
type AudioDetails struct{}

func (AudioDetails) ContentType() models.ContentType { return models.ContentAudio }
func (AudioDetails) sealed()                         {}

// PodcastDetails describes a podcast episode.
type PodcastDetails struct {
	Show     string `json:"show,omitempty"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
	Explicit bool   `json:"explicit,omitempty"`
}

func (PodcastDetails) ContentType() models.ContentType { return models.ContentPodcast }
func (PodcastDetails) sealed()                         {}

// Chapter is an audiobook chapter marker.
type Chapter struct {
	Title        string `json:"title"`
	StartSeconds int    `json:"startSeconds"`
}

// AudiobookDetails describes an audiobook.
type AudiobookDetails struct {
	Narrator    string    `json:"narrator,omitempty"`
	Series      string    `json:"series,omitempty"`
	SeriesIndex int       `json:"seriesIndex,omitempty"`
	Chapters    []Chapter `json:"chapters,omitempty"`
}

func (AudiobookDetails) ContentType() models.ContentType { return models.ContentAudiobook }
func (AudiobookDetails) sealed()                         {}

// Job is one queued publish operation.
type Job struct {
	ID         string
	Submission Submission
	Details    Details
	Targets    []models.PlaylistTarget
}

// Kind returns the content type of the job.
func (j *Job) Kind() models.ContentType {
	if j.Details == nil {
		return ""
	}
	return j.Details.ContentType()
}

// Validate checks the required fields: title, primary file and category.
//
// It runs at construction and again before building so nothing reaches the network without them.
func (j *Job) Validate() error {
	if j.Details == nil {
		return fmt.Errorf("%w: content type", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(j.Submission.Title) == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}
	if j.Submission.File.Empty() {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(j.Submission.Category) == "" {
		return fmt.Errorf("%w: category", shared.ErrMissingArgument)
	}
	for _, t := range j.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}
	return nil
}

func newJob(sub Submission, details Details, targets []models.PlaylistTarget) (*Job, error) {
	if sub.Visibility == "" {
		sub.Visibility = VisibilityPublic
	}
	job := &Job{
		ID:         shared.GenerateID(),
		Submission: sub,
		Details:    details,
		Targets:    targets,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// NewAudioJob creates a validated song job.
func NewAudioJob(sub Submission, targets ...models.PlaylistTarget) (*Job, error) {
	return newJob(sub, AudioDetails{}, targets)
}

// NewPodcastJob creates a validated podcast episode job.
func NewPodcastJob(sub Submission, details PodcastDetails, targets ...models.PlaylistTarget) (*Job, error) {
	return newJob(sub, details, targets)
}

// NewAudiobookJob creates a validated audiobook job.
func NewAudiobookJob(sub Submission, details AudiobookDetails, targets ...models.PlaylistTarget) (*Job, error) {
	return newJob(sub, details, targets)
}

// NewJob creates a validated job for the given content type with empty details.
func NewJob(kind models.ContentType, sub Submission, targets ...models.PlaylistTarget) (*Job, error) {
	switch kind {
	case models.ContentAudio:
		return NewAudioJob(sub, targets...)
	case models.ContentPodcast:
		return NewPodcastJob(sub, PodcastDetails{}, targets...)
	case models.ContentAudiobook:
		return NewAudiobookJob(sub, AudiobookDetails{}, targets...)
	default:
		return nil, fmt.Errorf("%w: content type %q", shared.ErrInvalidArgument, kind)
	}
}
