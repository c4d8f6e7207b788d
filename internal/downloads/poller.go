package downloads

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
)

// PollEvent is emitted by a [Poller] after every successful status probe.
type PollEvent struct {
	Status  models.DownloadStatus
	Percent *float64
	Stalled bool  // true on the tick that started a stall episode
	Err     error // set when Status is FAILED
}

// PollerOpts configures [Poller] timing.
type PollerOpts struct {
	Interval     time.Duration
	StallTimeout time.Duration
	RefetchDelay time.Duration
}

// Poller periodically probes the replication status of one resource.
//
// The stall countdown starts at StallTimeout and is decremented by Interval on every tick that reports
// the same percent as the previous one. When it drops below zero the poller enters STALLED_REFETCHING,
// resets the countdown and nudges the node after RefetchDelay.
type Poller struct {
	ref     models.ResourceRef
	network services.Network
	opts    PollerOpts
	emit    func(PollEvent)
	logger  *log.Logger

	// inFlight is the single slot held by a status probe or a pending nudge.
	inFlight atomic.Bool

	mu          sync.Mutex
	state       models.DownloadStatus
	lastPercent *float64
	countdown   time.Duration
	stalls      int

	nudges sync.WaitGroup
}

// NewPoller creates a poller in the REQUESTED state. emit may be nil.
func NewPoller(ref models.ResourceRef, network services.Network, opts PollerOpts, emit func(PollEvent), logger *log.Logger) *Poller {
	if emit == nil {
		emit = func(PollEvent) {}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{
		ref:       ref,
		network:   network,
		opts:      opts,
		emit:      emit,
		logger:    shared.WithLogger(logger, "identifier", ref.Identifier),
		state:     models.DownloadRequested,
		countdown: opts.StallTimeout,
	}
}

// State returns the current poller state.
func (p *Poller) State() models.DownloadStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Countdown returns the remaining stall countdown.
func (p *Poller) Countdown() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countdown
}

// Stalls returns how many stall episodes have been detected.
func (p *Poller) Stalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stalls
}

// Run ticks until the poller reaches a terminal state or ctx is done.
//
// The first probe is issued immediately.
func (p *Poller) Run(ctx context.Context) models.DownloadStatus {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	defer p.nudges.Wait()

	for {
		if p.Tick(ctx) {
			return p.State()
		}

		select {
		case <-ctx.Done():
			return p.State()
		case <-ticker.C:
		}
	}
}

// Tick performs one poll cycle and reports whether the poller is terminal.
//
// The tick is skipped when the previous probe or a pending nudge still holds the in-flight slot.
func (p *Poller) Tick(ctx context.Context) bool {
	if p.State().IsTerminal() {
		return true
	}

	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("skipping tick, previous request in flight")
		return false
	}

	status, err := p.network.FetchResourceStatus(ctx, p.ref)
	if err != nil {
		p.inFlight.Store(false)
		p.logger.Debug("status probe failed", "error", err)
		return false
	}

	event, nudge := p.advance(status)
	if nudge {
		p.nudges.Add(1)
		go p.nudge(ctx)
	} else {
		p.inFlight.Store(false)
	}

	if event != nil {
		p.emit(*event)
	}
	return event != nil && event.Status.IsTerminal()
}

// advance applies a status probe to the state machine.
func (p *Poller) advance(s *models.ResourceStatus) (*PollEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, ok := statusFor(s)
	if !ok {
		return nil, false
	}

	event := &PollEvent{Status: next, Percent: s.PercentLoaded}

	switch next {
	case models.DownloadReady:
		full := 100.0
		event.Percent = &full
		p.state = next
		return event, false
	case models.DownloadFailed:
		event.Err = fmt.Errorf("%w: node reports %s", shared.ErrResourceNotFound, s.Status)
		p.state = next
		return event, false
	}

	nudge := false
	if s.PercentLoaded != nil {
		pct := *s.PercentLoaded
		if p.lastPercent != nil && *p.lastPercent == pct && pct != 100 {
			p.countdown -= p.opts.Interval
		} else {
			p.countdown = p.opts.StallTimeout
			p.state = models.DownloadTransferring
		}
		p.lastPercent = &pct

		if p.countdown < 0 {
			p.countdown = p.opts.StallTimeout
			p.stalls++
			p.state = models.DownloadStalledRefetching
			event.Stalled = true
			nudge = true
		}
	} else if p.state != models.DownloadStalledRefetching {
		p.state = models.DownloadTransferring
	}

	if p.state == models.DownloadRequested {
		p.state = models.DownloadTransferring
	}
	event.Status = p.state
	return event, nudge
}

// nudge waits RefetchDelay, re-requests the resource properties, then releases the in-flight slot.
func (p *Poller) nudge(ctx context.Context) {
	defer p.nudges.Done()
	defer p.inFlight.Store(false)

	p.logger.Info("download stalled, scheduling refetch", "delay", p.opts.RefetchDelay)

	timer := time.NewTimer(p.opts.RefetchDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := p.network.FetchResourceProperties(ctx, p.ref); err != nil {
		p.logger.Debug("refetch nudge failed", "error", err)
	}
}
