package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/urfave/cli/v3"
)

func serviceFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "service",
		Aliases: []string{"s"},
		Usage:   "Resource service (AUDIO, VIDEO, PLAYLIST, DOCUMENT, THUMBNAIL)",
		Value:   models.ServiceAudio.String(),
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Request a resource and resolve its playable URL",
		ArgsUsage: "<name> <identifier>",
		Flags: []cli.Flag{
			serviceFlag(),
			&cli.StringFlag{Name: "title", Usage: "Display title"},
			&cli.StringFlag{Name: "author", Usage: "Display author"},
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Wait until the resource is ready"},
			&cli.DurationFlag{Name: "timeout", Usage: "Give up waiting after this long (0 waits forever)"},
			&cli.BoolFlag{Name: "open", Usage: "Open the resolved URL with the system handler"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Play,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Probe the replication status of a resource",
		ArgsUsage: "<name> <identifier>",
		Flags: []cli.Flag{
			serviceFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Status,
	}
}

// refFromArgs reads the <name> <identifier> positional arguments and the --service flag.
func refFromArgs(cmd *cli.Command) (models.ResourceRef, error) {
	if cmd.Args().Len() < 2 {
		return models.ResourceRef{}, fmt.Errorf("%w: <name> <identifier>", shared.ErrMissingArgument)
	}
	service, err := models.ParseService(cmd.String("service"))
	if err != nil {
		return models.ResourceRef{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	ref := models.NewResourceRef(cmd.Args().Get(0), service, cmd.Args().Get(1))
	if err := ref.Validate(); err != nil {
		return models.ResourceRef{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return ref, nil
}

// Play requests a download. With --wait it follows the record until it is terminal and prints the URL.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	ref, err := refFromArgs(cmd)
	if err != nil {
		return err
	}

	meta := models.DownloadMetadata{Title: cmd.String("title"), Author: cmd.String("author")}
	if err := r.downloads.RequestDownload(ctx, ref, meta); err != nil {
		return fmt.Errorf("failed to request download: %w", err)
	}

	if !cmd.Bool("wait") && !cmd.Bool("open") {
		rec, _ := r.downloads.Record(ref.Identifier)
		return r.printRecord(rec, cmd.Bool("json"))
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stop := r.followDownload(ref.Identifier)
	rec, err := r.downloads.Wait(ctx, ref.Identifier)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			r.downloads.Abandon(ref.Identifier)
			return fmt.Errorf("%w: %s is still %s", shared.ErrTimeout, ref, rec.Status)
		}
		return err
	}

	if cmd.Bool("open") {
		if err := shared.OpenURL(rec.URL); err != nil {
			return err
		}
	}
	return r.printRecord(rec, cmd.Bool("json"))
}

// followDownload logs status changes of identifier until the returned stop func is called.
func (r *Runner) followDownload(identifier string) func() {
	updates, unsubscribe := r.downloads.Subscribe(16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var last models.DownloadStatus
		for rec := range updates {
			if rec.Ref.Identifier != identifier || rec.Status == last {
				continue
			}
			last = rec.Status
			r.logger.Info("download", "identifier", identifier, "status", rec.Status, "percent", rec.PercentLoaded)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (r *Runner) printRecord(rec models.DownloadRecord, asJSON bool) error {
	if asJSON {
		return r.writeJSON(rec, true)
	}

	r.writePlain("%s\n", rec.DisplayTitle())
	r.writePlain("  Resource: %s\n", rec.Ref)
	r.writePlain("  Status:   %s (%.0f%%)\n", rec.Status, rec.PercentLoaded)
	if rec.URL != "" {
		r.writePlain("  URL:      %s\n", rec.URL)
	}
	if rec.Error != "" {
		r.writePlain("  Error:    %s\n", rec.Error)
	}
	return nil
}

// Status performs a single replication probe without starting a poller.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	ref, err := refFromArgs(cmd)
	if err != nil {
		return err
	}

	status, err := r.network.FetchResourceStatus(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("%s\n", ref)
	r.writePlain("  Status: %s\n", status.Status)
	if status.PercentLoaded != nil {
		r.writePlain("  Loaded: %.0f%%\n", *status.PercentLoaded)
	}
	if status.TotalChunkCount > 0 {
		r.writePlain("  Chunks: %d/%d\n", status.LocalChunkCount, status.TotalChunkCount)
	}
	r.writePlain("  Checked: %s\n", time.Now().Format(time.DateTime))
	return nil
}
