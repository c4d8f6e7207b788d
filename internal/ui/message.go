package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRecordUpdated MsgKind = iota
	MsgRecordsClosed
	MsgProgressUpdate
	MsgProgressClosed
	MsgActionFailed
)

// recordUpdatedMsg is the constructor for [MsgRecordUpdated]
func recordUpdatedMsg(rec models.DownloadRecord) Msg {
	return Msg{kind: MsgRecordUpdated, data: rec}
}

// recordsClosedMsg is the constructor for [MsgRecordsClosed]
func recordsClosedMsg() Msg {
	return Msg{kind: MsgRecordsClosed}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// progressClosedMsg is the constructor for [MsgProgressClosed]
func progressClosedMsg() Msg {
	return Msg{kind: MsgProgressClosed}
}

// actionFailedMsg is the constructor for [MsgActionFailed]
func actionFailedMsg(err error) Msg {
	return Msg{kind: MsgActionFailed, data: err}
}
