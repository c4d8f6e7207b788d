package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/earbump/internal/models"
)

var (
	_ list.Item = recordItem{}
)

// recordItem wraps [models.DownloadRecord] to implement [list.Item].
type recordItem struct {
	record models.DownloadRecord
}

func (i recordItem) FilterValue() string { return i.record.DisplayTitle() }
func (i recordItem) Title() string       { return i.record.DisplayTitle() }
func (i recordItem) Description() string {
	desc := fmt.Sprintf("%s %.0f%%", statusLabel(i.record.Status), i.record.PercentLoaded)
	if i.record.Author != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.record.Author)
	}
	if i.record.Error != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.record.Error)
	}
	return desc
}

// statusLabel renders a download status in its palette color.
func statusLabel(s models.DownloadStatus) string {
	switch s {
	case models.DownloadReady:
		return styles.ok.Render(s.String())
	case models.DownloadFailed:
		return styles.err.Render(s.String())
	case models.DownloadStalledRefetching:
		return styles.warn.Render(s.String())
	default:
		return s.String()
	}
}
