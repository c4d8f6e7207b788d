package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/urfave/cli/v3"
)

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search published resources on the node",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			serviceFlag(),
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Only resources published by this name"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of results", Value: 20},
			&cli.IntFlag{Name: "offset", Usage: "Skip this many results"},
			&cli.BoolFlag{Name: "reverse", Usage: "Newest first"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Search,
	}
}

// Search lists resources matching the query with their metadata.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	service, err := models.ParseService(cmd.String("service"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	query := models.SearchQuery{
		Service:         service,
		Query:           strings.Join(cmd.Args().Slice(), " "),
		Name:            cmd.String("name"),
		Limit:           int(cmd.Int("limit")),
		Offset:          int(cmd.Int("offset")),
		Reverse:         cmd.Bool("reverse"),
		IncludeMetadata: true,
	}

	results, err := r.network.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}

	if len(results) == 0 {
		return r.writePlain("No results.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d %s result(s)", len(results), service))
	for _, res := range results {
		title := res.Identifier
		if res.Metadata != nil && res.Metadata.Title != "" {
			title = res.Metadata.Title
		}
		r.writePlain("%s\n", title)
		r.writePlain("  %s  %s\n", res.Ref(), res.CreatedAt().Format("2006-01-02"))
	}
	return nil
}

func favoritesCommand(r *Runner) *cli.Command {
	playlistFlag := func() cli.Flag {
		return &cli.BoolFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "Operate on favorite playlists"}
	}

	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Manage locally stored favorites",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a song or playlist to favorites",
				ArgsUsage: "<name> <identifier>",
				Flags: []cli.Flag{
					playlistFlag(),
					serviceFlag(),
					&cli.StringFlag{Name: "title", Usage: "Display title"},
					&cli.StringFlag{Name: "author", Usage: "Song author"},
					&cli.StringFlag{Name: "description", Usage: "Playlist description"},
				},
				Action: r.FavoritesAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a song or playlist from favorites",
				ArgsUsage: "<identifier>",
				Flags:     []cli.Flag{playlistFlag()},
				Action:    r.FavoritesRemove,
			},
			{
				Name:  "list",
				Usage: "List favorite songs or playlists",
				Flags: []cli.Flag{
					playlistFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.FavoritesList,
			},
		},
	}
}

// FavoritesAdd stores a favorite. Re-adding refreshes its display fields.
func (r *Runner) FavoritesAdd(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("%w: <name> <identifier>", shared.ErrMissingArgument)
	}
	name, identifier := cmd.Args().Get(0), cmd.Args().Get(1)

	repo, err := r.favorites()
	if err != nil {
		return err
	}

	if cmd.Bool("playlist") {
		fav := &models.FavoritePlaylist{
			Identifier:  identifier,
			Name:        name,
			Title:       cmd.String("title"),
			Description: cmd.String("description"),
		}
		if err := repo.AddPlaylist(fav); err != nil {
			return err
		}
		return r.writePlain("✓ Added playlist %s to favorites\n", identifier)
	}

	service, err := models.ParseService(cmd.String("service"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	fav := &models.Favorite{
		Identifier: identifier,
		Name:       name,
		Service:    service,
		Title:      cmd.String("title"),
		Author:     cmd.String("author"),
	}
	if err := repo.AddSong(fav); err != nil {
		return err
	}
	return r.writePlain("✓ Added %s to favorites\n", identifier)
}

// FavoritesRemove deletes a favorite. Removing a missing favorite is not an error.
func (r *Runner) FavoritesRemove(ctx context.Context, cmd *cli.Command) error {
	identifier := cmd.Args().First()
	if identifier == "" {
		return fmt.Errorf("%w: <identifier>", shared.ErrMissingArgument)
	}

	repo, err := r.favorites()
	if err != nil {
		return err
	}

	if cmd.Bool("playlist") {
		err = repo.RemovePlaylist(identifier)
	} else {
		err = repo.RemoveSong(identifier)
	}
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from favorites\n", identifier)
}

// FavoritesList prints favorites, most recent first.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.favorites()
	if err != nil {
		return err
	}

	if cmd.Bool("playlist") {
		playlists, err := repo.ListPlaylists()
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(playlists, true)
		}
		r.writePlainHeader("Favorite playlists")
		for _, p := range playlists {
			r.writePlain("%s\n  %s/%s\n", firstNonEmpty(p.Title, p.Identifier), p.Name, p.Identifier)
		}
		return nil
	}

	songs, err := repo.ListSongs()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}
	r.writePlainHeader("Favorite songs")
	for _, s := range songs {
		r.writePlain("%s", firstNonEmpty(s.Title, s.Identifier))
		if s.Author != "" {
			r.writePlain(" by %s", s.Author)
		}
		r.writePlain("\n  %s\n", models.NewResourceRef(s.Name, s.Service, s.Identifier))
	}
	return nil
}

func publishedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "published",
		Usage: "List resources published from this machine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Only this service"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Published,
	}
}

// Published lists the local publish history.
func (r *Runner) Published(ctx context.Context, cmd *cli.Command) error {
	var service models.Service
	if s := cmd.String("service"); s != "" {
		parsed, err := models.ParseService(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		service = parsed
	}

	repo, err := r.published()
	if err != nil {
		return err
	}

	resources, err := repo.ListPublished(ctx, service)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(resources, true)
	}

	r.writePlainHeader("Published")
	for _, res := range resources {
		r.writePlain("%s  %s\n  %s\n", res.PublishedAt.Format("2006-01-02 15:04"), firstNonEmpty(res.Title, res.Ref.Identifier), res.Ref)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
