package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
)

// PublishRecorder persists successfully published resources.
//
// Recording is best effort: errors are logged and never fail a job.
type PublishRecorder interface {
	SavePublished(ctx context.Context, res models.PublishedResource) error
}

// QueueOpts configures a [PublishQueue].
type QueueOpts struct {
	Build    publish.BuildOptions
	Report   ReportFunc
	Progress chan<- ProgressUpdate
	Recorder PublishRecorder
	Logger   *log.Logger
}

// PublishQueue publishes jobs one at a time in enqueue order.
//
// A single drain goroutine runs while jobs are pending. A failed job is reported and the run continues;
// losing the publisher identity fails every remaining job. When the queue empties, the aggregator's
// playlists are flushed.
type PublishQueue struct {
	network    services.Network
	identity   services.Identity
	aggregator *PlaylistAggregator
	opts       QueueOpts
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	jobs      []*publish.Job
	running   bool
	idle      chan struct{}
	succeeded int
	failed    int
}

// NewPublishQueue creates an idle queue.
func NewPublishQueue(network services.Network, identity services.Identity, aggregator *PlaylistAggregator, opts QueueOpts) *PublishQueue {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if aggregator == nil {
		aggregator = NewPlaylistAggregator(network, AggregatorOpts{Logger: opts.Logger})
	}

	idle := make(chan struct{})
	close(idle)

	ctx, cancel := context.WithCancel(context.Background())
	return &PublishQueue{
		network:    network,
		identity:   identity,
		aggregator: aggregator,
		opts:       opts,
		logger:     shared.WithLogger(opts.Logger, "component", "queue"),
		ctx:        ctx,
		cancel:     cancel,
		idle:       idle,
	}
}

// Enqueue validates jobs, registers their playlist targets and appends them to the queue.
//
// The drain goroutine is started when none is running. Publishing is bound to the queue's lifetime,
// not to ctx, which only bounds identity resolution.
func (q *PublishQueue) Enqueue(ctx context.Context, jobs ...*publish.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	for _, job := range jobs {
		if job == nil {
			return fmt.Errorf("%w: job", shared.ErrMissingArgument)
		}
		if err := job.Validate(); err != nil {
			return err
		}
	}
	if err := q.ctx.Err(); err != nil {
		return fmt.Errorf("%w: queue closed", shared.ErrServiceUnavailable)
	}

	owner, err := q.identity.ActiveName(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrIdentityUnavailable, err)
	}

	q.aggregator.RegisterTargets(jobs, owner)

	q.mu.Lock()
	q.jobs = append(q.jobs, jobs...)
	pending := len(q.jobs)
	start := !q.running
	if start {
		q.running = true
		q.idle = make(chan struct{})
		q.succeeded, q.failed = 0, 0
	}
	q.mu.Unlock()

	q.logger.Info("jobs queued", "count", len(jobs), "pending", pending, "owner", owner)
	q.sendProgress(enqueueUpdate(len(jobs), pending))

	if start {
		go q.drain(owner)
	}
	return nil
}

// Pending returns the number of jobs waiting to be published.
func (q *PublishQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Running reports whether a drain goroutine is active.
func (q *PublishQueue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Wait blocks until the queue is drained and playlists are flushed.
func (q *PublishQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue. Jobs not yet published are reported as failed.
func (q *PublishQueue) Close() {
	q.cancel()
}

func (q *PublishQueue) drain(runOwner string) {
	step := 0
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.mu.Unlock()

			q.flush(runOwner)

			q.mu.Lock()
			if len(q.jobs) > 0 {
				q.mu.Unlock()
				continue
			}
			q.finishLocked()
			q.mu.Unlock()
			return
		}

		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		step++
		total := step + len(q.jobs)
		q.mu.Unlock()

		if err := q.ctx.Err(); err != nil {
			q.abort(job, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err))
			return
		}

		owner, err := q.identity.ActiveName(q.ctx)
		if err == nil && owner != runOwner {
			err = shared.ErrIdentityChanged
		}
		if err != nil {
			q.abort(job, fmt.Errorf("%w: %w", shared.ErrIdentityUnavailable, err))
			return
		}

		q.sendProgress(buildJobUpdate(step, total, job.Submission.Title))
		report := q.publishJob(job, owner)

		q.mu.Lock()
		if report.OK() {
			q.succeeded++
		} else {
			q.failed++
		}
		q.mu.Unlock()

		if report.OK() {
			q.sendProgress(publishJobUpdate(step, total, report))
		} else {
			q.sendProgress(jobFailedUpdate(step, total, report))
		}
		q.deliver(Report{Job: &report})
	}
}

// publishJob builds and publishes one job, recording its song in every declared playlist target.
func (q *PublishQueue) publishJob(job *publish.Job, owner string) JobReport {
	report := JobReport{
		JobID: job.ID,
		Title: job.Submission.Title,
		Kind:  job.Kind(),
		Owner: owner,
	}

	resources, err := publish.Build(job, owner, q.opts.Build)
	if err != nil {
		report.Err = err
		q.logger.Error("failed to build job", "job", job.ID, "title", report.Title, "error", err)
		return report
	}
	report.Identifier = resources[0].Ref.Identifier

	ids, err := q.network.Publish(q.ctx, resources)
	if err == nil {
		err = verifyPublished(resources, ids)
	}
	if err != nil {
		report.Err = err
		q.logger.Error("publish failed", "job", job.ID, "identifier", report.Identifier, "error", err)
		return report
	}

	for _, r := range resources {
		report.Resources = append(report.Resources, r.Ref)
	}

	song := publish.Song(job, resources)
	for _, target := range job.Targets {
		q.aggregator.Record(owner, target, song)
	}

	q.record(resources[0].Ref, report.Title)
	q.logger.Info("published", "identifier", report.Identifier, "service", resources[0].Ref.Service, "resources", len(resources))
	return report
}

// abort fails the current job and every queued job, then drops all playlist accumulators.
// Jobs enqueued while the abort is in progress are failed with the same error.
func (q *PublishQueue) abort(current *publish.Job, err error) {
	q.aggregator.Reset()
	q.logger.Error("queue aborted", "error", err)

	dropped := []*publish.Job{current}
	for {
		q.mu.Lock()
		dropped = append(dropped, q.jobs...)
		q.jobs = nil
		if len(dropped) == 0 {
			q.finishLocked()
			q.mu.Unlock()
			return
		}
		q.failed += len(dropped)
		q.mu.Unlock()

		q.sendProgress(identityLostUpdate(len(dropped), err))
		for _, job := range dropped {
			report := JobReport{JobID: job.ID, Title: job.Submission.Title, Kind: job.Kind(), Err: err}
			q.deliver(Report{Job: &report})
		}
		dropped = nil
	}
}

// finishLocked marks the run as finished and wakes waiters. Callers hold q.mu.
func (q *PublishQueue) finishLocked() {
	q.logger.Info("queue drained", "published", q.succeeded, "failed", q.failed)
	q.sendProgress(drainedUpdate(q.succeeded, q.failed))
	q.running = false
	close(q.idle)
}

func (q *PublishQueue) flush(owner string) {
	results := q.aggregator.Flush(q.ctx, owner)
	for i, result := range results {
		q.sendProgress(flushPlaylistUpdate(i+1, len(results), result))
		if result.Err == nil && result.Playlist.Identifier != "" {
			q.record(result.Playlist, result.Title)
		}
		q.deliver(Report{Flush: &result})
	}
}

func (q *PublishQueue) record(ref models.ResourceRef, title string) {
	if q.opts.Recorder == nil {
		return
	}
	res := models.PublishedResource{Ref: ref, Title: title, PublishedAt: time.Now()}
	if err := q.opts.Recorder.SavePublished(q.ctx, res); err != nil {
		q.logger.Debug("failed to record published resource", "identifier", ref.Identifier, "error", err)
	}
}

func (q *PublishQueue) deliver(r Report) {
	if q.opts.Report != nil {
		q.opts.Report(r)
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (q *PublishQueue) sendProgress(update ProgressUpdate) {
	if q.opts.Progress == nil {
		return
	}
	select {
	case q.opts.Progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

// verifyPublished checks that the node accepted exactly the identifiers that were submitted.
func verifyPublished(resources []models.ResourcePayload, ids []string) error {
	submitted := make(map[string]bool, len(resources))
	for _, r := range resources {
		submitted[r.Ref.Identifier] = true
	}
	returned := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !submitted[id] {
			return fmt.Errorf("%w: unexpected identifier %q", shared.ErrPublishMismatch, id)
		}
		returned[id] = true
	}
	for id := range submitted {
		if !returned[id] {
			return fmt.Errorf("%w: %q not acknowledged", shared.ErrPublishMismatch, id)
		}
	}
	return nil
}

// IsIdentityLoss reports whether a job failed because the publisher identity went away.
func IsIdentityLoss(err error) bool {
	return errors.Is(err, shared.ErrIdentityUnavailable)
}
