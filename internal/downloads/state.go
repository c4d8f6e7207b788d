package downloads

import "github.com/desertthunder/earbump/internal/models"

// transitions lists, per status, the statuses a record may move to.
//
// Staying in the same status is always allowed so percent updates can be persisted.
var transitions = map[models.DownloadStatus][]models.DownloadStatus{
	models.DownloadRequested: {
		models.DownloadFetchingURL,
		models.DownloadTransferring,
		models.DownloadStalledRefetching,
		models.DownloadReady,
		models.DownloadFailed,
	},
	models.DownloadFetchingURL: {
		models.DownloadTransferring,
		models.DownloadStalledRefetching,
		models.DownloadReady,
		models.DownloadFailed,
	},
	models.DownloadTransferring: {
		models.DownloadStalledRefetching,
		models.DownloadReady,
		models.DownloadFailed,
	},
	models.DownloadStalledRefetching: {
		models.DownloadTransferring,
		models.DownloadReady,
		models.DownloadFailed,
	},
	models.DownloadReady: {},
	models.DownloadFailed: {
		models.DownloadRequested,
	},
}

// CanTransition reports whether a record in status from may move to status to.
func CanTransition(from, to models.DownloadStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusFor maps a node replication probe onto a download status.
//
// Returns ok=false when the probe carries no state information (e.g. PUBLISHED, NOT_STARTED).
func statusFor(s *models.ResourceStatus) (models.DownloadStatus, bool) {
	switch {
	case s.IsReady():
		return models.DownloadReady, true
	case s.IsUnavailable():
		return models.DownloadFailed, true
	case s.PercentLoaded != nil:
		return models.DownloadTransferring, true
	}

	switch s.Status {
	case models.NodeStatusDownloading, models.NodeStatusDownloaded, models.NodeStatusBuilding:
		return models.DownloadTransferring, true
	default:
		return "", false
	}
}
