// Package downloads tracks requested resources from "not yet available" to "ready to play".
//
// A [Coordinator] owns one [models.DownloadRecord] per identifier. Requesting a download creates the
// record, resolves its playable URL and starts a [Poller] that probes replication status on a fixed
// interval:
//
//	REQUESTED → FETCHING_URL → TRANSFERRING ⇄ STALLED_REFETCHING → READY
//
// Any non-terminal state may move to FAILED (resource unavailable or abandoned), and a FAILED record
// is restarted by requesting it again. [CanTransition] holds the transition table.
//
// # Stall Detection
//
// While the reported percent stays the same (and below 100) the poller decrements a stall countdown
// by the poll interval. Once it drops below zero the record enters STALLED_REFETCHING and the node is
// nudged to re-request the resource properties after a delay. The poller's single in-flight slot stays
// held until the nudge returns, so ticks are skipped instead of queued.
//
// Failed status probes are swallowed and retried on the next tick.
package downloads
