package tasks

import (
	"fmt"

	"github.com/desertthunder/earbump/internal/models"
)

// ProgressUpdate represents a progress event during a queue run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	EnqueueJobs Phase = iota
	BuildJob
	PublishJob
	JobFailed
	FlushPlaylist
	IdentityLost
	QueueDrained
)

func (p Phase) String() string {
	switch p {
	case EnqueueJobs:
		return "enqueue_jobs"
	case BuildJob:
		return "build_job"
	case PublishJob:
		return "publish_job"
	case JobFailed:
		return "job_failed"
	case FlushPlaylist:
		return "flush_playlist"
	case IdentityLost:
		return "identity_lost"
	case QueueDrained:
		return "queue_drained"
	default:
		return ""
	}
}

func enqueueUpdate(added, pending int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueJobs,
		Step:    added,
		Total:   pending,
		Message: fmt.Sprintf("Queued %d job(s), %d pending", added, pending),
	}
}

func buildJobUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildJob,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Preparing %s...", step, total, title),
	}
}

func publishJobUpdate(step, total int, report JobReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishJob,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, report.Title, report.Identifier),
		Data:    report,
	}
}

func jobFailedUpdate(step, total int, report JobReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   JobFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, report.Title, report.Err),
		Data:    report,
	}
}

func flushPlaylistUpdate(step, total int, result FlushResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ Playlist %s (+%d songs)", step, total, result.Title, result.Added)
	if result.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ Playlist %s: %v", step, total, result.Title, result.Err)
	}
	return ProgressUpdate{
		Phase:   FlushPlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    result,
	}
}

func identityLostUpdate(dropped int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IdentityLost,
		Step:    dropped,
		Total:   dropped,
		Message: fmt.Sprintf("Queue aborted, %d job(s) dropped: %v", dropped, err),
	}
}

func drainedUpdate(succeeded, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   QueueDrained,
		Step:    succeeded,
		Total:   succeeded + failed,
		Message: fmt.Sprintf("Queue drained: %d published, %d failed", succeeded, failed),
	}
}

// JobReport is the outcome of one publish job.
type JobReport struct {
	JobID      string
	Title      string
	Kind       models.ContentType
	Owner      string
	Identifier string
	Resources  []models.ResourceRef
	Err        error
}

// OK reports whether the job was published.
func (r JobReport) OK() bool {
	return r.Err == nil
}

// Report is delivered to a [ReportFunc] for every finished job and every playlist flush.
// Exactly one of Job and Flush is set.
type Report struct {
	Job   *JobReport
	Flush *FlushResult
}

// ReportFunc receives queue reports. It is called from the drain goroutine.
type ReportFunc func(Report)
