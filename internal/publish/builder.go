package publish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

const (
	defaultAudioPrefix     = "earbump_song_"
	defaultPodcastPrefix   = "earbump_podcast_"
	defaultAudiobookPrefix = "earbump_audiobook_"

	// maxTags is the node's limit on tags per resource.
	maxTags = 5
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// BuildOptions configures identifier prefixes and thumbnail encoding.
//
// Suffix and Thumbnail default to [RandomSuffix] and [MakeThumbnail].
type BuildOptions struct {
	AudioPrefix           string
	PodcastPrefix         string
	AudiobookPrefix       string
	ThumbnailMaxDimension int
	ThumbnailQuality      float64
	Suffix                func() string
	Thumbnail             ThumbnailFunc
}

// BuildOptionsFromConfig converts the [publish] config section.
func BuildOptionsFromConfig(cfg shared.PublishConfig) BuildOptions {
	return BuildOptions{
		AudioPrefix:           cfg.AudioPrefix,
		PodcastPrefix:         cfg.PodcastPrefix,
		AudiobookPrefix:       cfg.AudiobookPrefix,
		ThumbnailMaxDimension: cfg.ThumbnailMaxDimension,
		ThumbnailQuality:      cfg.ThumbnailQuality,
	}
}

// Prefix returns the identifier prefix for a content type.
func (o BuildOptions) Prefix(kind models.ContentType) string {
	switch kind {
	case models.ContentPodcast:
		return firstNonEmpty(o.PodcastPrefix, defaultPodcastPrefix)
	case models.ContentAudiobook:
		return firstNonEmpty(o.AudiobookPrefix, defaultAudiobookPrefix)
	default:
		return firstNonEmpty(o.AudioPrefix, defaultAudioPrefix)
	}
}

func (o BuildOptions) suffix() string {
	if o.Suffix != nil {
		return o.Suffix()
	}
	return RandomSuffix()
}

func (o BuildOptions) thumbnail(data []byte) ([]byte, error) {
	if o.Thumbnail != nil {
		return o.Thumbnail(data, o.ThumbnailMaxDimension, o.ThumbnailQuality)
	}
	return MakeThumbnail(data, o.ThumbnailMaxDimension, o.ThumbnailQuality)
}

// Document is the structured metadata published as a DOCUMENT resource for podcasts and audiobooks.
type Document struct {
	Type       models.ContentType  `json:"type"`
	Title      string              `json:"title"`
	Author     string              `json:"author,omitempty"`
	Category   string              `json:"category"`
	Mood       string              `json:"mood,omitempty"`
	Language   string              `json:"language,omitempty"`
	Notes      string              `json:"notes,omitempty"`
	Album      string              `json:"album,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
	Visibility Visibility          `json:"visibility"`
	Media      models.ResourceRef  `json:"media"`
	Thumbnail  *models.ResourceRef `json:"thumbnail,omitempty"`
	Details    Details             `json:"details"`
}

// Build turns a job into the resource bundle published under owner.
//
// The primary asset always comes first, followed by the optional THUMBNAIL and DOCUMENT resources,
// all sharing one identifier. Build performs no network calls.
func Build(job *Job, owner string, opts BuildOptions) ([]models.ResourcePayload, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: job", shared.ErrMissingArgument)
	}
	if owner == "" {
		return nil, shared.ErrIdentityUnavailable
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	sub := job.Submission
	identifier := sub.EditIdentifier
	if identifier == "" {
		identifier = NewIdentifier(opts.Prefix(job.Kind()), sub.Title, opts.suffix())
	}

	service := models.ServiceAudio
	if videoExtensions[sub.File.Ext()] {
		service = models.ServiceVideo
	}

	tags := buildTags(sub)
	primary := models.ResourcePayload{
		Ref:         models.NewResourceRef(owner, service, identifier),
		Title:       strings.TrimSpace(sub.Title),
		Description: FormatMetadata(MetadataFromSubmission(sub)),
		Tags:        tags,
		Filename:    Filename(sub.Title, sub.File.Ext()),
		Data:        sub.File.Data,
	}
	resources := []models.ResourcePayload{primary}

	var thumbRef *models.ResourceRef
	if !sub.Cover.Empty() {
		data, err := opts.thumbnail(sub.Cover.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: cover: %v", shared.ErrInvalidArgument, err)
		}
		ref := models.NewResourceRef(owner, models.ServiceThumbnail, identifier)
		thumbRef = &ref
		resources = append(resources, models.ResourcePayload{
			Ref:      ref,
			Title:    primary.Title,
			Filename: Filename(sub.Title, ".jpg"),
			Data:     data,
		})
	}

	switch job.Kind() {
	case models.ContentPodcast, models.ContentAudiobook:
		doc := Document{
			Type:       job.Kind(),
			Title:      primary.Title,
			Author:     sub.Author,
			Category:   sub.Category,
			Mood:       sub.Mood,
			Language:   sub.Language,
			Notes:      sub.Notes,
			Album:      sub.Album,
			Tags:       tags,
			Visibility: sub.Visibility,
			Media:      primary.Ref,
			Thumbnail:  thumbRef,
			Details:    job.Details,
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata document: %w", err)
		}
		resources = append(resources, models.ResourcePayload{
			Ref:         models.NewResourceRef(owner, models.ServiceDocument, identifier),
			Title:       primary.Title,
			Description: primary.Description,
			Filename:    Filename(sub.Title, ".json"),
			Data:        data,
		})
	}

	return resources, nil
}

// Song returns the playlist entry for a built bundle.
func Song(job *Job, resources []models.ResourcePayload) models.SongReference {
	primary := resources[0].Ref
	return models.SongReference{
		Identifier: primary.Identifier,
		Name:       primary.Name,
		Service:    primary.Service,
		Title:      strings.TrimSpace(job.Submission.Title),
		Author:     job.Submission.Author,
	}
}

// buildTags merges the category with the user tags, deduplicated and capped at the node limit.
// Unlisted submissions carry no tags.
func buildTags(sub Submission) []string {
	if sub.Visibility == VisibilityUnlisted {
		return nil
	}

	seen := make(map[string]bool)
	var tags []string
	for _, t := range append([]string{sub.Category}, sub.Tags...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
