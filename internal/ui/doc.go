// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI follows downloads and publish queue runs:
//  1. [DownloadsView] : Live list of download records with status and percent
//  2. [DetailView] : One record with a progress bar, abandon and retry actions
//  3. [QueueView] : Progress log of the current publish queue run
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Record updates arrive from a coordinator subscription and queue progress from a channel, so neither producer ever blocks on rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, x, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
