package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/desertthunder/earbump/internal/tasks"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
)

func watchCommand(r *Runner) *cli.Command {
	flags := append(jobFlags(),
		&cli.DurationFlag{Name: "settle", Usage: "Delay before a new file is read", Value: 500 * time.Millisecond},
	)
	return &cli.Command{
		Name:      "watch",
		Usage:     "Publish media files as they appear in a folder",
		ArgsUsage: "<dir>",
		Flags:     flags,
		Action:    r.Watch,
	}
}

// ignoredFile reports hidden and temporary files that are never published.
func ignoredFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part")
}

// addDirectory recursively adds dir and its subdirectories to the watcher.
func addDirectory(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Watch enqueues every media file created under the folder until interrupted.
//
// A --new-playlist target is flushed each time the queue drains, so files arriving in one burst
// share a playlist.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("%w: <dir>", shared.ErrMissingArgument)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, dir)
	}

	js, err := jobSpecFromFlags(cmd)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addDirectory(watcher, dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := shared.WithLogger(r.logger, "dir", dir)
	queue := r.newQueue(func(report tasks.Report) { logReport(r, report) }, nil)
	defer queue.Close()

	settle := cmd.Duration("settle")
	ready := make(chan string)
	logger.Info("watching for media files")

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "pending", queue.Pending())
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredFile(event.Name) || !event.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := addDirectory(watcher, event.Name); err != nil {
					logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			if !publish.IsMediaFile(event.Name) {
				continue
			}
			go func(path string) {
				select {
				case <-time.After(settle):
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				case <-ctx.Done():
				}
			}(event.Name)

		case path := <-ready:
			job, err := js.jobFromFile(path)
			if err != nil {
				logger.Error("skipping file", "path", path, "error", err)
				continue
			}
			if err := queue.Enqueue(ctx, job); err != nil {
				logger.Error("failed to enqueue", "path", path, "error", err)
				if tasks.IsIdentityLoss(err) {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

func logReport(r *Runner, report tasks.Report) {
	switch {
	case report.Job != nil && report.Job.OK():
		r.logger.Info("published", "title", report.Job.Title, "identifier", report.Job.Identifier)
	case report.Job != nil:
		r.logger.Error("publish failed", "title", report.Job.Title, "error", report.Job.Err)
	case report.Flush != nil && report.Flush.Err != nil:
		r.logger.Error("playlist update failed", "title", report.Flush.Title, "error", report.Flush.Err)
	case report.Flush != nil:
		r.logger.Info("playlist updated", "title", report.Flush.Title, "added", report.Flush.Added, "total", report.Flush.Total)
	}
}
