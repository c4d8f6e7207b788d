package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/tasks"
)

// maxLogLines bounds the queue progress log kept in memory.
const maxLogLines = 100

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DownloadsView ViewState = iota
	DetailView
	QueueView
)

// Downloads is the download coordinator surface driven by the TUI.
type Downloads interface {
	Records() []models.DownloadRecord
	Subscribe(buffer int) (<-chan models.DownloadRecord, func())
	RequestDownload(ctx context.Context, ref models.ResourceRef, meta models.DownloadMetadata) error
	Abandon(identifier string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	downloads    Downloads
	updates      <-chan models.DownloadRecord
	unsubscribe  func()
	progressChan <-chan tasks.ProgressUpdate
	records      map[string]models.DownloadRecord
	order        []string
	selected     string
	recordList   list.Model
	bar          progress.Model
	queueLog     []tasks.ProgressUpdate
	queueDone    bool
	width        int
	height       int
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model following downloads and, when progressChan is non-nil, a publish queue run.
//
// The coordinator subscription is opened immediately so no update is missed before Init.
func NewModel(ctx context.Context, downloads Downloads, progressChan <-chan tasks.ProgressUpdate) *Model {
	updates, unsubscribe := downloads.Subscribe(64)

	m := &Model{
		ctx:          ctx,
		view:         DownloadsView,
		downloads:    downloads,
		updates:      updates,
		unsubscribe:  unsubscribe,
		progressChan: progressChan,
		records:      make(map[string]models.DownloadRecord),
		bar:          progress.New(progress.WithDefaultGradient()),
		help:         help.New(),
		keys:         newKeyMap(),
	}

	m.recordList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.recordList.Title = "Downloads"
	for _, rec := range downloads.Records() {
		m.upsert(rec)
	}
	m.refreshItems()
	return m
}

// Close releases the coordinator subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts listening for record updates and queue progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForRecord(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recordList.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DownloadsView:
			return m.handleDownloadsKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case QueueView:
			return m.handleQueueKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.recordList, cmd = m.recordList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRecordUpdated:
		m.upsert(msg.data.(models.DownloadRecord))
		return m, tea.Batch(m.refreshItems(), m.waitForRecord())

	case MsgRecordsClosed:
		m.updates = nil
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.queueLog = append(m.queueLog, update)
		if len(m.queueLog) > maxLogLines {
			m.queueLog = m.queueLog[len(m.queueLog)-maxLogLines:]
		}
		if update.Phase == tasks.QueueDrained {
			m.queueDone = true
		}
		return m, m.waitForProgress()

	case MsgProgressClosed:
		m.progressChan = nil
		m.queueDone = true
		return m, nil

	case MsgActionFailed:
		m.err, _ = msg.data.(error)
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DownloadsView:
		return m.renderDownloads()
	case DetailView:
		return m.renderDetail()
	case QueueView:
		return m.renderQueue()
	default:
		return ""
	}
}

func (m *Model) handleDownloadsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.recordList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.tab):
			m.view = QueueView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.recordList.SelectedItem().(recordItem); ok {
				m.selected = item.record.Ref.Identifier
				m.err = nil
				m.view = DetailView
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.recordList, cmd = m.recordList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = DownloadsView
		return m, nil
	case key.Matches(msg, m.keys.abandon):
		return m, m.abandon(m.selected)
	case key.Matches(msg, m.keys.retry):
		rec, ok := m.records[m.selected]
		if !ok || rec.Status != models.DownloadFailed {
			return m, nil
		}
		return m, m.retry(rec)
	}
	return m, nil
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab), key.Matches(msg, m.keys.back):
		m.view = DownloadsView
	}
	return m, nil
}

// upsert stores rec, keeping first-seen order for display. Snapshots older than the stored one are dropped.
func (m *Model) upsert(rec models.DownloadRecord) {
	id := rec.Ref.Identifier
	current, ok := m.records[id]
	if !ok {
		m.order = append(m.order, id)
	} else if rec.StaleAgainst(current) {
		return
	}
	m.records[id] = rec
}

func (m *Model) refreshItems() tea.Cmd {
	items := make([]list.Item, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, recordItem{record: m.records[id]})
	}
	return m.recordList.SetItems(items)
}

func (m *Model) waitForRecord() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		rec, ok := <-updates
		if !ok {
			return recordsClosedMsg()
		}
		return recordUpdatedMsg(rec)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan := m.progressChan
	if progressChan == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			return progressClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) abandon(identifier string) tea.Cmd {
	return func() tea.Msg {
		if err := m.downloads.Abandon(identifier); err != nil {
			return actionFailedMsg(err)
		}
		return nil
	}
}

func (m *Model) retry(rec models.DownloadRecord) tea.Cmd {
	return func() tea.Msg {
		meta := models.DownloadMetadata{Title: rec.Title, Author: rec.Author}
		if err := m.downloads.RequestDownload(m.ctx, rec.Ref, meta); err != nil {
			return actionFailedMsg(err)
		}
		return nil
	}
}

func (m *Model) renderDownloads() string {
	var body string
	if len(m.order) == 0 {
		body = styles.title.Render("Downloads") + "\n" + styles.help.Render("No downloads yet.")
	} else {
		body = m.recordList.View()
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.tab, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", body, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	rec, ok := m.records[m.selected]
	if !ok {
		return styles.err.Render("Download not found\n\nPress esc to go back")
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(rec.DisplayTitle()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Resource: %s\n", rec.Ref)
	if rec.Author != "" {
		fmt.Fprintf(&b, "Author:   %s\n", rec.Author)
	}
	fmt.Fprintf(&b, "Status:   %s\n\n", statusLabel(rec.Status))
	b.WriteString(m.bar.ViewAs(rec.PercentLoaded / 100))
	b.WriteString("\n\n")
	if rec.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", rec.URL)
	}
	if rec.Error != "" {
		b.WriteString(styles.err.Render("Error: "+rec.Error) + "\n")
	}
	if m.err != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("Action failed: %v", m.err)) + "\n")
	}

	helpKeys := []key.Binding{m.keys.abandon, m.keys.retry, m.keys.back, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderQueue() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Publish Queue"))
	b.WriteString("\n")

	if len(m.queueLog) == 0 {
		b.WriteString(styles.help.Render("No queue activity."))
		b.WriteString("\n")
	}

	lines := m.queueLog
	if limit := max(m.height-6, 5); len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	for _, update := range lines {
		b.WriteString(renderUpdate(update))
		b.WriteString("\n")
	}

	if m.queueDone {
		b.WriteString("\n" + styles.ok.Render("Queue idle"))
	} else if m.progressChan != nil {
		b.WriteString("\n" + styles.help.Render("Publishing..."))
	}

	helpKeys := []key.Binding{m.keys.tab, m.keys.quit}
	b.WriteString("\n\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func renderUpdate(update tasks.ProgressUpdate) string {
	switch update.Phase {
	case tasks.PublishJob:
		return styles.ok.Render(update.Message)
	case tasks.JobFailed, tasks.IdentityLost:
		return styles.err.Render(update.Message)
	case tasks.FlushPlaylist:
		if result, ok := update.Data.(tasks.FlushResult); ok && result.Err != nil {
			return styles.err.Render(update.Message)
		}
		return styles.ok.Render(update.Message)
	default:
		return update.Message
	}
}
