package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/slipway-dev/slipway/types"
)

func newTestModel() ProgressModel {
	events := make(chan tea.Msg)
	return NewProgressModel("v1.2.3", []string{"resolve", "build:linux", "distribute"}, events)
}

func TestProgressModel_InitialView(t *testing.T) {
	view := newTestModel().View()

	if !strings.Contains(view, "v1.2.3") {
		t.Errorf("view missing version: %s", view)
	}
	for _, id := range []string{"resolve", "build:linux", "distribute"} {
		if !strings.Contains(view, id) {
			t.Errorf("view missing node %s", id)
		}
	}
	if !strings.Contains(view, "pending") {
		t.Errorf("fresh nodes should render pending: %s", view)
	}
}

func TestProgressModel_NodeTransition(t *testing.T) {
	m := newTestModel()

	updated, _ := m.Update(NodeMsg{Node: "build:linux", Status: types.StatusSuccess})
	view := updated.(ProgressModel).View()

	if !strings.Contains(view, "success") {
		t.Errorf("view missing success state: %s", view)
	}
}

func TestProgressModel_DoneQuits(t *testing.T) {
	m := newTestModel()

	updated, cmd := m.Update(DoneMsg{Outcome: types.OutcomeSuccess, Message: "release complete"})
	if cmd == nil {
		t.Fatal("DoneMsg should return tea.Quit")
	}
	view := updated.(ProgressModel).View()
	if !strings.Contains(view, "release complete") {
		t.Errorf("view missing outcome message: %s", view)
	}
}

func TestProgressModel_QuitKey(t *testing.T) {
	m := newTestModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return tea.Quit")
	}
	if updated.(ProgressModel).View() != "" {
		t.Error("quitting view should be empty")
	}
}
