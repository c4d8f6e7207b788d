package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/downloads"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/repositories"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
	"github.com/desertthunder/earbump/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	network    services.Network
	identity   services.Identity
	downloads  *downloads.Coordinator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Network    services.Network
	Identity   services.Identity
	Downloads  *downloads.Coordinator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB // opened lazily from config when nil
}

// NewRunner creates a new Runner with the provided configuration.
//
// Missing services are built from the config: a rate limited node client, a static identity
// for [publish] name and a download coordinator polling that client.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Node.Timeout()}
	}
	if opts.Network == nil {
		api := services.NewAPIService(services.APIOpts{
			BaseURL:           opts.Config.Node.BaseURL,
			APIKey:            opts.Config.Node.APIKey,
			HTTPClient:        opts.HTTPClient,
			RequestsPerSecond: opts.Config.Node.RequestsPerSecond,
		})
		opts.Network = services.NewNodeService(api)
	}
	if opts.Identity == nil {
		opts.Identity = services.StaticIdentity(opts.Config.Publish.Name)
	}
	if opts.Downloads == nil {
		opts.Downloads = downloads.NewCoordinator(opts.Network, downloads.OptionsFromConfig(opts.Config.Downloads, opts.Logger))
	}

	r := &Runner{
		config:     opts.Config,
		network:    opts.Network,
		identity:   opts.Identity,
		downloads:  opts.Downloads,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.dbOnce.Do(func() { r.db = opts.DB })
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playCommand, statusCommand, publishCommand, watchCommand,
		searchCommand, playlistCommand, favoritesCommand, publishedCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close stops active downloads and releases the database.
func (r *Runner) Close() error {
	r.downloads.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// database opens the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		r.db, r.dbErr = shared.OpenDatabase(r.config.Database)
		if r.dbErr != nil {
			r.dbErr = fmt.Errorf("failed to open database (run setup first?): %w", r.dbErr)
		}
	})
	return r.db, r.dbErr
}

func (r *Runner) favorites() (*repositories.FavoritesRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewFavoritesRepository(db), nil
}

func (r *Runner) published() (*repositories.PublishedRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewPublishedRepository(db), nil
}

// newQueue creates a publish queue for the configured identity.
//
// Published resources are recorded when the database is available; publishing works without it.
func (r *Runner) newQueue(report tasks.ReportFunc, progress chan<- tasks.ProgressUpdate) *tasks.PublishQueue {
	opts := tasks.QueueOpts{
		Build:    publish.BuildOptionsFromConfig(r.config.Publish),
		Report:   report,
		Progress: progress,
		Logger:   r.logger,
	}
	if repo, err := r.published(); err != nil {
		r.logger.Warn("publish history disabled", "error", err)
	} else {
		opts.Recorder = repo
	}

	aggregator := tasks.NewPlaylistAggregator(r.network, tasks.AggregatorOpts{
		PlaylistPrefix: r.config.Publish.PlaylistPrefix,
		Logger:         r.logger,
	})
	return tasks.NewPublishQueue(r.network, r.identity, aggregator, opts)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
