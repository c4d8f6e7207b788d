package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
)

const defaultPlaylistPrefix = "earbump_playlist_"

// FlushResult is the outcome of writing one accumulated playlist.
type FlushResult struct {
	Owner    string
	Target   models.PlaylistTarget
	Title    string
	Playlist models.ResourceRef // the written playlist, zero when nothing was published
	Added    int                // songs appended by this flush
	Total    int                // songs in the written document
	Err      error
}

// AggregatorOpts configures a [PlaylistAggregator].
type AggregatorOpts struct {
	PlaylistPrefix string
	Suffix         func() string // identifier suffix source, defaults to [publish.RandomSuffix]
	Logger         *log.Logger
}

type accumulator struct {
	owner  string
	target models.PlaylistTarget
	songs  []models.SongReference
}

func (a *accumulator) add(song models.SongReference) bool {
	for _, s := range a.songs {
		if s.Identifier == song.Identifier {
			return false
		}
	}
	a.songs = append(a.songs, song)
	return true
}

// PlaylistAggregator collects the playlist targets of a queue run and writes each playlist once.
//
// Accumulators are keyed by owner and target. NEW targets sharing a key converge on one new playlist.
type PlaylistAggregator struct {
	network services.Network
	opts    AggregatorOpts
	logger  *log.Logger

	mu      sync.Mutex
	buckets map[string]*accumulator
	order   []string
}

// NewPlaylistAggregator creates an empty aggregator.
func NewPlaylistAggregator(network services.Network, opts AggregatorOpts) *PlaylistAggregator {
	if opts.PlaylistPrefix == "" {
		opts.PlaylistPrefix = defaultPlaylistPrefix
	}
	if opts.Suffix == nil {
		opts.Suffix = publish.RandomSuffix
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistAggregator{
		network: network,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "playlists"),
		buckets: make(map[string]*accumulator),
	}
}

func bucketKey(owner string, target models.PlaylistTarget) string {
	return owner + "|" + target.Key()
}

// bucket returns the accumulator for key, creating it when missing. Callers hold a.mu.
func (a *PlaylistAggregator) bucket(owner string, target models.PlaylistTarget) *accumulator {
	key := bucketKey(owner, target)
	acc, ok := a.buckets[key]
	if !ok {
		acc = &accumulator{owner: owner, target: target}
		a.buckets[key] = acc
		a.order = append(a.order, key)
	}
	return acc
}

// RegisterTargets creates the accumulator of every target declared by jobs.
func (a *PlaylistAggregator) RegisterTargets(jobs []*publish.Job, owner string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, job := range jobs {
		for _, target := range job.Targets {
			a.bucket(owner, target)
		}
	}
}

// Record appends song to the target's accumulator unless the identifier is already present.
func (a *PlaylistAggregator) Record(owner string, target models.PlaylistTarget, song models.SongReference) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bucket(owner, target).add(song)
}

// Pending returns the number of accumulators awaiting a flush.
func (a *PlaylistAggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

// Songs returns a copy of the accumulated songs for a target.
func (a *PlaylistAggregator) Songs(owner string, target models.PlaylistTarget) []models.SongReference {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.buckets[bucketKey(owner, target)]
	if !ok {
		return nil
	}
	return slices.Clone(acc.songs)
}

// Reset drops every accumulator without writing anything.
func (a *PlaylistAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buckets = make(map[string]*accumulator)
	a.order = nil
}

// take removes and returns the accumulators of owner in registration order.
func (a *PlaylistAggregator) take(owner string) []*accumulator {
	a.mu.Lock()
	defer a.mu.Unlock()

	var taken []*accumulator
	remaining := a.order[:0]
	for _, key := range a.order {
		acc := a.buckets[key]
		if acc.owner != owner {
			remaining = append(remaining, key)
			continue
		}
		taken = append(taken, acc)
		delete(a.buckets, key)
	}
	a.order = remaining
	return taken
}

// Flush writes every non-empty accumulator of owner: one publish per NEW playlist and one
// read-modify-write per EXISTING playlist. Accumulators are cleared whether or not the write succeeds,
// and empty ones are dropped without a network call.
func (a *PlaylistAggregator) Flush(ctx context.Context, owner string) []FlushResult {
	var results []FlushResult
	for _, acc := range a.take(owner) {
		if len(acc.songs) == 0 {
			continue
		}

		var result FlushResult
		switch acc.target.Kind {
		case models.TargetNew:
			result = a.flushNew(ctx, acc)
		default:
			result = a.flushExisting(ctx, acc)
		}

		if result.Err != nil {
			a.logger.Error("playlist flush failed", "target", acc.target.Key(), "error", result.Err)
		} else {
			a.logger.Info("playlist written", "identifier", result.Playlist.Identifier, "added", result.Added, "total", result.Total)
		}
		results = append(results, result)
	}
	return results
}

func (a *PlaylistAggregator) flushNew(ctx context.Context, acc *accumulator) FlushResult {
	result := FlushResult{Owner: acc.owner, Target: acc.target, Title: acc.target.Title}

	doc := &models.PlaylistDocument{
		Title:       acc.target.Title,
		Description: acc.target.Description,
	}
	result.Added = doc.Merge(acc.songs)
	result.Total = len(doc.Songs)

	identifier := publish.NewIdentifier(a.opts.PlaylistPrefix, acc.target.Title, a.opts.Suffix())
	ref := models.NewResourceRef(acc.owner, models.ServicePlaylist, identifier)
	if err := a.write(ctx, ref, doc); err != nil {
		result.Err = err
		return result
	}
	result.Playlist = ref
	return result
}

func (a *PlaylistAggregator) flushExisting(ctx context.Context, acc *accumulator) FlushResult {
	result := FlushResult{Owner: acc.owner, Target: acc.target, Title: acc.target.PlaylistID}
	ref := models.NewResourceRef(acc.owner, models.ServicePlaylist, acc.target.PlaylistID)

	doc, err := services.FetchPlaylist(ctx, a.network, ref)
	if err != nil {
		result.Err = err
		return result
	}
	if doc.Title != "" {
		result.Title = doc.Title
	}

	result.Added = doc.Merge(acc.songs)
	result.Total = len(doc.Songs)
	if result.Added == 0 {
		result.Playlist = ref
		return result
	}

	if err := a.write(ctx, ref, doc); err != nil {
		result.Err = err
		return result
	}
	result.Playlist = ref
	return result
}

func (a *PlaylistAggregator) write(ctx context.Context, ref models.ResourceRef, doc *models.PlaylistDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}

	payload := models.ResourcePayload{
		Ref:         ref,
		Title:       doc.Title,
		Description: doc.Description,
		Filename:    publish.Filename(doc.Title, ".json"),
		Data:        data,
	}
	ids, err := a.network.Publish(ctx, []models.ResourcePayload{payload})
	if err != nil {
		return err
	}
	return verifyPublished([]models.ResourcePayload{payload}, ids)
}
