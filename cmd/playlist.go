package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/earbump/internal/formatter"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/urfave/cli/v3"
)

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Inspect and export published playlists",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the songs of a playlist",
				ArgsUsage: "<name> <identifier>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist to CSV, Markdown or plain text",
				ArgsUsage: "<name> <identifier>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: csv, markdown, text", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path, defaults to the playlist identifier"},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

func (r *Runner) fetchPlaylist(ctx context.Context, cmd *cli.Command) (*formatter.PlaylistExport, error) {
	if cmd.Args().Len() < 2 {
		return nil, fmt.Errorf("%w: <name> <identifier>", shared.ErrMissingArgument)
	}
	ref := models.NewResourceRef(cmd.Args().Get(0), models.ServicePlaylist, cmd.Args().Get(1))

	doc, err := services.FetchPlaylist(ctx, r.network, ref)
	if err != nil {
		return nil, err
	}
	return &formatter.PlaylistExport{Ref: ref, Document: doc}, nil
}

// PlaylistShow fetches a playlist document and prints its songs.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	export, err := r.fetchPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export.Document, true)
	}

	data, err := formatter.ExportToText(export)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// PlaylistExport writes a playlist to disk in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	export, err := r.fetchPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Songs: %s\n", result.SongsFile)
		r.writePlain("✓ Metadata: %s\n", result.MetadataFile)
	case "markdown", "md":
		result, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		for _, f := range result.Files {
			r.writePlain("✓ %s\n", f)
		}
	case "text", "txt":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ %s\n", path)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	return nil
}
