package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/desertthunder/earbump/internal/tasks"
	"github.com/desertthunder/earbump/internal/ui"
	"github.com/urfave/cli/v3"
)

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Usage:     "Follow downloads and publish progress interactively",
		ArgsUsage: "[file]...",
		Flags:     jobFlags(),
		Action:    r.TUI,
	}
}

// TUI launches the interactive terminal UI. Files given as arguments are published while it runs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	var jobs []*publish.Job
	if paths := cmd.Args().Slice(); len(paths) > 0 {
		js, err := jobSpecFromFlags(cmd)
		if err != nil {
			return err
		}
		for _, path := range paths {
			job, err := js.jobFromFile(path)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	var progress chan tasks.ProgressUpdate
	if len(jobs) > 0 {
		progress = make(chan tasks.ProgressUpdate, 64)
		queue := r.newQueue(nil, progress)
		defer queue.Close()
		if err := queue.Enqueue(ctx, jobs...); err != nil {
			return fmt.Errorf("failed to enqueue: %w", err)
		}
	}

	model := ui.NewModel(ctx, r.downloads, progress)
	defer model.Close()

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
