package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/desertthunder/earbump/internal/tasks"
	"github.com/urfave/cli/v3"
)

// jobSpec holds the publish flags applied to every file of a run.
type jobSpec struct {
	kind      models.ContentType
	base      publish.Submission
	cover     string
	podcast   publish.PodcastDetails
	audiobook publish.AudiobookDetails
	targets   []models.PlaylistTarget
}

func jobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Content type (AUDIO, PODCAST, AUDIOBOOK)", Value: models.ContentAudio.String()},
		&cli.StringFlag{Name: "category", Usage: "Category, defaults to the file's genre tag"},
		&cli.StringFlag{Name: "author", Usage: "Author, defaults to the file's artist tag"},
		&cli.StringFlag{Name: "album", Usage: "Album, defaults to the file's album tag"},
		&cli.StringFlag{Name: "mood", Usage: "Mood"},
		&cli.StringFlag{Name: "language", Usage: "Language"},
		&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Discovery tag (repeatable)"},
		&cli.BoolFlag{Name: "unlisted", Usage: "Publish without discovery tags"},
		&cli.StringFlag{Name: "cover", Usage: "Cover image, defaults to the file's embedded picture"},
		&cli.StringSliceFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "Append to an existing playlist identifier (repeatable)"},
		&cli.StringFlag{Name: "new-playlist", Usage: "Collect the run into a new playlist with this title"},
		&cli.StringFlag{Name: "playlist-description", Usage: "Description of the new playlist"},
		&cli.StringFlag{Name: "show", Usage: "Podcast show name"},
		&cli.IntFlag{Name: "season", Usage: "Podcast season"},
		&cli.IntFlag{Name: "episode", Usage: "Podcast episode"},
		&cli.BoolFlag{Name: "explicit", Usage: "Podcast episode is explicit"},
		&cli.StringFlag{Name: "narrator", Usage: "Audiobook narrator"},
		&cli.StringFlag{Name: "series", Usage: "Audiobook series"},
		&cli.IntFlag{Name: "series-index", Usage: "Audiobook position in its series"},
	}
}

func publishCommand(r *Runner) *cli.Command {
	flags := append(jobFlags(),
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title, only valid with a single file"},
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON reports"},
	)
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish media files through the queue",
		ArgsUsage: "<file>...",
		Flags:     flags,
		Action:    r.Publish,
	}
}

func jobSpecFromFlags(cmd *cli.Command) (jobSpec, error) {
	kind, err := models.ParseContentType(cmd.String("kind"))
	if err != nil {
		return jobSpec{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	js := jobSpec{
		kind: kind,
		base: publish.Submission{
			Category: cmd.String("category"),
			Author:   cmd.String("author"),
			Album:    cmd.String("album"),
			Mood:     cmd.String("mood"),
			Language: cmd.String("language"),
			Notes:    cmd.String("notes"),
			Tags:     cmd.StringSlice("tag"),
		},
		cover: cmd.String("cover"),
		podcast: publish.PodcastDetails{
			Show:     cmd.String("show"),
			Season:   int(cmd.Int("season")),
			Episode:  int(cmd.Int("episode")),
			Explicit: cmd.Bool("explicit"),
		},
		audiobook: publish.AudiobookDetails{
			Narrator:    cmd.String("narrator"),
			Series:      cmd.String("series"),
			SeriesIndex: int(cmd.Int("series-index")),
		},
	}
	if cmd.Bool("unlisted") {
		js.base.Visibility = publish.VisibilityUnlisted
	}

	for _, id := range cmd.StringSlice("playlist") {
		js.targets = append(js.targets, models.ExistingPlaylist(id))
	}
	if title := cmd.String("new-playlist"); title != "" {
		js.targets = append(js.targets, models.NewPlaylist(title, cmd.String("playlist-description"), ""))
	}
	for _, t := range js.targets {
		if err := t.Validate(); err != nil {
			return jobSpec{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
	}
	return js, nil
}

// jobFromFile reads path and builds a validated job of the configured kind.
func (s jobSpec) jobFromFile(path string) (*publish.Job, error) {
	sub, err := publish.FromFile(path, s.base)
	if err != nil {
		return nil, err
	}

	if s.cover != "" {
		data, err := os.ReadFile(s.cover)
		if err != nil {
			return nil, fmt.Errorf("failed to read cover: %w", err)
		}
		sub.Cover = &publish.Asset{Name: filepath.Base(s.cover), Data: data}
	}

	var job *publish.Job
	switch s.kind {
	case models.ContentPodcast:
		job, err = publish.NewPodcastJob(sub, s.podcast, s.targets...)
	case models.ContentAudiobook:
		job, err = publish.NewAudiobookJob(sub, s.audiobook, s.targets...)
	default:
		job, err = publish.NewAudioJob(sub, s.targets...)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return job, nil
}

// reportCollector gathers queue reports delivered from the drain goroutine.
type reportCollector struct {
	mu      sync.Mutex
	jobs    []tasks.JobReport
	flushes []tasks.FlushResult
}

func (c *reportCollector) collect(report tasks.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if report.Job != nil {
		c.jobs = append(c.jobs, *report.Job)
	}
	if report.Flush != nil {
		c.flushes = append(c.flushes, *report.Flush)
	}
}

func (c *reportCollector) failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, job := range c.jobs {
		if !job.OK() {
			n++
		}
	}
	for _, flush := range c.flushes {
		if flush.Err != nil {
			n++
		}
	}
	return n
}

// Publish validates every file before enqueueing any of them, then waits for the queue to drain.
func (r *Runner) Publish(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	js, err := jobSpecFromFlags(cmd)
	if err != nil {
		return err
	}
	if title := cmd.String("title"); title != "" {
		if len(paths) > 1 {
			return fmt.Errorf("%w: --title requires a single file", shared.ErrInvalidFlag)
		}
		js.base.Title = title
	}

	jobs := make([]*publish.Job, 0, len(paths))
	for _, path := range paths {
		job, err := js.jobFromFile(path)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	collector := &reportCollector{}
	queue := r.newQueue(collector.collect, nil)
	defer queue.Close()

	if err := queue.Enqueue(ctx, jobs...); err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}
	r.logger.Info("publishing", "jobs", len(jobs))

	if err := queue.Wait(ctx); err != nil {
		return err
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(map[string]any{"jobs": collector.jobs, "playlists": collector.flushes}, true); err != nil {
			return err
		}
	} else {
		r.printReports(collector)
	}

	if n := collector.failures(); n > 0 {
		return fmt.Errorf("%d publish operation(s) failed", n)
	}
	return nil
}

func (r *Runner) printReports(c *reportCollector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r.writePlainHeader("Published")
	for _, job := range c.jobs {
		if job.OK() {
			r.writePlain("✓ %s → %s/%s\n", job.Title, job.Owner, job.Identifier)
		} else {
			r.writePlain("✗ %s: %v\n", job.Title, job.Err)
		}
	}

	if len(c.flushes) == 0 {
		return
	}
	r.writePlain("\nPlaylists:\n")
	for _, flush := range c.flushes {
		if flush.Err != nil {
			r.writePlain("✗ %s: %v\n", flush.Title, flush.Err)
			continue
		}
		r.writePlain("✓ %s (%s): %d added, %d total\n", flush.Title, flush.Playlist.Identifier, flush.Added, flush.Total)
	}
}
