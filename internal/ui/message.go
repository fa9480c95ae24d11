package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lyx/internal/tasks"
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
	MsgProgressUpdate MsgKind = iota
	MsgHarvestComplete
)

// harvestOutcome is the payload of [MsgHarvestComplete].
type harvestOutcome struct {
	result *tasks.RunResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// harvestCompleteMsg is the constructor for [MsgHarvestComplete]
func harvestCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgHarvestComplete, data: harvestOutcome{result, err}}
}
