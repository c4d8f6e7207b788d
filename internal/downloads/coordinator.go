package downloads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultStallTimeout = 24 * time.Second
	defaultRefetchDelay = 25 * time.Second
)

// Options configures a [Coordinator].
type Options struct {
	PollInterval time.Duration
	StallTimeout time.Duration
	RefetchDelay time.Duration
	Logger       *log.Logger
}

// OptionsFromConfig converts the [downloads] config section.
func OptionsFromConfig(cfg shared.DownloadsConfig, logger *log.Logger) Options {
	return Options{
		PollInterval: cfg.PollInterval(),
		StallTimeout: cfg.StallTimeout(),
		RefetchDelay: cfg.RefetchDelay(),
		Logger:       logger,
	}
}

// activeDownload is the cancellation handle of a running poller and URL resolver.
type activeDownload struct {
	gen    uint64
	cancel context.CancelFunc
}

// Coordinator owns the download record map and one poller per active identifier.
type Coordinator struct {
	network services.Network
	opts    Options
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	records map[string]*models.DownloadRecord
	active  map[string]*activeDownload
	gens    map[string]uint64
	gen     uint64
	version uint64
	changed chan struct{}

	subMu       sync.Mutex
	subscribers []chan models.DownloadRecord
	onUpdate    func(models.DownloadRecord)

	now func() time.Time
}

// NewCoordinator creates a coordinator. Pollers run until terminal, [Coordinator.Abandon] or [Coordinator.Close].
func NewCoordinator(network services.Network, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = defaultStallTimeout
	}
	if opts.RefetchDelay < 0 {
		opts.RefetchDelay = defaultRefetchDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		network: network,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "downloads"),
		ctx:     ctx,
		cancel:  cancel,
		records: make(map[string]*models.DownloadRecord),
		active:  make(map[string]*activeDownload),
		gens:    make(map[string]uint64),
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// SetUpdateCallback sets the callback invoked with a snapshot after every record change.
func (c *Coordinator) SetUpdateCallback(callback func(models.DownloadRecord)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.onUpdate = callback
}

// Subscribe returns a channel of record snapshots and a function that unsubscribes.
//
// Sends never block: a subscriber whose buffer is full misses updates.
func (c *Coordinator) Subscribe(buffer int) (<-chan models.DownloadRecord, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan models.DownloadRecord, buffer)

	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, sub := range c.subscribers {
				if sub == ch {
					c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
					close(ch)
					break
				}
			}
		})
	}
}

// RequestDownload starts tracking ref.
//
// It is a no-op when a record for the identifier exists and has not FAILED, so at most one poller
// runs per identifier and a playable READY record acts as a cache hit. Polling is bound to the coordinator's
// lifetime, not to ctx.
func (c *Coordinator) RequestDownload(ctx context.Context, ref models.ResourceRef, meta models.DownloadMetadata) error {
	if ref.Identifier == "" {
		return fmt.Errorf("%w: identifier is required", shared.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: coordinator closed", shared.ErrServiceUnavailable)
	}
	if rec, ok := c.records[ref.Identifier]; ok && !c.restartableLocked(rec) {
		c.mu.Unlock()
		c.logger.Debug("download already tracked", "identifier", ref.Identifier, "status", rec.Status)
		return nil
	}

	c.gen++
	gen := c.gen
	rec := &models.DownloadRecord{
		Ref:       ref,
		Status:    models.DownloadRequested,
		Title:     meta.Title,
		Author:    meta.Author,
		UpdatedAt: c.now(),
	}
	c.version++
	rec.Version = c.version
	c.records[ref.Identifier] = rec
	c.gens[ref.Identifier] = gen

	runCtx, cancel := context.WithCancel(c.ctx)
	poller := NewPoller(ref, c.network, PollerOpts{
		Interval:     c.opts.PollInterval,
		StallTimeout: c.opts.StallTimeout,
		RefetchDelay: c.opts.RefetchDelay,
	}, func(ev PollEvent) { c.handlePoll(ref.Identifier, gen, ev) }, c.logger)
	c.active[ref.Identifier] = &activeDownload{gen: gen, cancel: cancel}
	snapshot := *rec
	c.broadcastLocked()
	c.wg.Add(2)
	c.mu.Unlock()

	c.notify(snapshot)
	c.logger.Info("download requested", "identifier", ref.Identifier, "service", ref.Service)

	go c.resolveURL(runCtx, ref, gen)
	go c.runPoller(runCtx, ref.Identifier, gen, poller)

	return nil
}

// restartableLocked reports whether a new request replaces rec: it FAILED, or it is READY without a URL
// and nothing is resolving one. Callers hold c.mu.
func (c *Coordinator) restartableLocked(rec *models.DownloadRecord) bool {
	if rec.Status == models.DownloadFailed {
		return true
	}
	_, active := c.active[rec.Ref.Identifier]
	return rec.Status == models.DownloadReady && rec.URL == "" && !active
}

// Record returns a snapshot of the record for identifier.
func (c *Coordinator) Record(identifier string) (models.DownloadRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[identifier]
	if !ok {
		return models.DownloadRecord{}, false
	}
	return *rec, true
}

// Records returns snapshots of every record, most recently updated first.
func (c *Coordinator) Records() []models.DownloadRecord {
	c.mu.RLock()
	out := make([]models.DownloadRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, *rec)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Ref.Identifier < out[j].Ref.Identifier
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Active reports whether a poller is running for identifier.
func (c *Coordinator) Active(identifier string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[identifier]
	return ok
}

// Abandon stops polling identifier and marks its record FAILED so a later request restarts it.
func (c *Coordinator) Abandon(identifier string) error {
	c.mu.Lock()
	rec, ok := c.records[identifier]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: no download for %s", shared.ErrResourceNotFound, identifier)
	}

	if act, ok := c.active[identifier]; ok {
		act.cancel()
		delete(c.active, identifier)
	}

	if rec.Status.IsTerminal() {
		c.broadcastLocked()
		c.mu.Unlock()
		return nil
	}

	rec.Status = models.DownloadFailed
	rec.Error = shared.ErrAbandoned.Error()
	rec.UpdatedAt = c.now()
	c.version++
	rec.Version = c.version
	snapshot := *rec
	c.broadcastLocked()
	c.mu.Unlock()

	c.logger.Info("download abandoned", "identifier", identifier)
	c.notify(snapshot)
	return nil
}

// Wait blocks until the record for identifier is playable or FAILED.
//
// A READY record is returned only once its URL is resolved. Returns an error wrapping the failure
// reason when the record ends FAILED, and [shared.ErrAbandoned] when resolution was stopped before a
// READY record got its URL.
func (c *Coordinator) Wait(ctx context.Context, identifier string) (models.DownloadRecord, error) {
	for {
		c.mu.RLock()
		rec, ok := c.records[identifier]
		var snapshot models.DownloadRecord
		if ok {
			snapshot = *rec
		}
		_, active := c.active[identifier]
		changed := c.changed
		c.mu.RUnlock()

		if !ok {
			return snapshot, fmt.Errorf("%w: no download for %s", shared.ErrResourceNotFound, identifier)
		}

		switch snapshot.Status {
		case models.DownloadReady:
			if snapshot.URL != "" {
				return snapshot, nil
			}
			if !active {
				return snapshot, fmt.Errorf("download %s: no playable URL: %w", identifier, shared.ErrAbandoned)
			}
		case models.DownloadFailed:
			if snapshot.Error == shared.ErrAbandoned.Error() {
				return snapshot, fmt.Errorf("download %s: %w", identifier, shared.ErrAbandoned)
			}
			return snapshot, fmt.Errorf("download %s failed: %s", identifier, snapshot.Error)
		}

		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels every poller and waits for them to exit. Later requests fail.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	c.active = make(map[string]*activeDownload)
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *Coordinator) runPoller(ctx context.Context, identifier string, gen uint64, p *Poller) {
	defer c.wg.Done()

	final := p.Run(ctx)

	switch final {
	case models.DownloadFailed:
		c.stop(identifier, gen)
	case models.DownloadReady:
		c.finishIfPlayable(identifier, gen)
	}

	c.logger.Debug("poller stopped", "identifier", identifier, "status", final)
}

// stop cancels the poller and URL resolver of generation gen.
func (c *Coordinator) stop(identifier string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if act, ok := c.active[identifier]; ok && act.gen == gen {
		act.cancel()
		delete(c.active, identifier)
	}
}

// finishIfPlayable releases the active handle of generation gen once the record is READY with a URL.
//
// The poller and the URL resolver both call it when they finish, whichever is last releases the handle.
func (c *Coordinator) finishIfPlayable(identifier string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[identifier]
	if !ok || !rec.Playable() {
		return
	}
	if act, ok := c.active[identifier]; ok && act.gen == gen {
		act.cancel()
		delete(c.active, identifier)
	}
}

// resolveURL resolves the playable URL, retrying every poll interval until it succeeds.
//
// Not-found is retried like any other error: a freshly published resource may not have reached the
// local node yet.
func (c *Coordinator) resolveURL(ctx context.Context, ref models.ResourceRef, gen uint64) {
	defer c.wg.Done()

	c.apply(ref.Identifier, gen, func(rec *models.DownloadRecord) bool {
		return c.transition(rec, models.DownloadFetchingURL)
	})

	for {
		url, err := c.network.FetchResourceURL(ctx, ref)
		if err == nil {
			c.apply(ref.Identifier, gen, func(rec *models.DownloadRecord) bool {
				if rec.Status == models.DownloadFailed {
					return false
				}
				rec.URL = url
				c.transition(rec, models.DownloadTransferring)
				return true
			})
			c.finishIfPlayable(ref.Identifier, gen)
			return
		}

		if errors.Is(err, shared.ErrResourceNotFound) {
			c.logger.Debug("resource not on node yet, retrying", "identifier", ref.Identifier)
		} else {
			c.logger.Debug("url resolution failed, retrying", "identifier", ref.Identifier, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.PollInterval):
		}
	}
}

func (c *Coordinator) handlePoll(identifier string, gen uint64, ev PollEvent) {
	c.apply(identifier, gen, func(rec *models.DownloadRecord) bool {
		if rec.Status.IsTerminal() {
			return false
		}
		changed := false
		if ev.Percent != nil && *ev.Percent > rec.PercentLoaded {
			rec.PercentLoaded = *ev.Percent
			changed = true
		}
		if c.transition(rec, ev.Status) {
			changed = true
		}
		if ev.Err != nil && rec.Status == models.DownloadFailed {
			rec.Error = ev.Err.Error()
		}
		if ev.Stalled {
			changed = true
		}
		return changed
	})
}

// transition moves rec to status when the transition table allows it.
func (c *Coordinator) transition(rec *models.DownloadRecord, status models.DownloadStatus) bool {
	if rec.Status == status {
		return false
	}
	if !CanTransition(rec.Status, status) {
		c.logger.Debug("ignoring transition", "identifier", rec.Ref.Identifier, "from", rec.Status, "to", status)
		return false
	}
	rec.Status = status
	return true
}

// apply mutates the record for identifier if it still belongs to request generation gen.
func (c *Coordinator) apply(identifier string, gen uint64, mutate func(*models.DownloadRecord) bool) {
	c.mu.Lock()
	rec, ok := c.records[identifier]
	if !ok || c.gens[identifier] != gen || !mutate(rec) {
		c.mu.Unlock()
		return
	}
	rec.UpdatedAt = c.now()
	c.version++
	rec.Version = c.version
	snapshot := *rec
	c.broadcastLocked()
	c.mu.Unlock()

	c.notify(snapshot)
}

// broadcastLocked wakes every [Coordinator.Wait] caller. Callers hold c.mu.
func (c *Coordinator) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// notify delivers a snapshot to the callback and every subscriber without blocking.
//
// Concurrent commits may be delivered out of order; receivers compare [models.DownloadRecord.Version].
func (c *Coordinator) notify(rec models.DownloadRecord) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate(rec)
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- rec:
		default:
		}
	}
}
