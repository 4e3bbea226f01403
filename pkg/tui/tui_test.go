package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/james-see/neonhorizon/pkg/encoder"
)

func press(m Model, k tea.KeyType) Model {
	next, _ := m.Update(tea.KeyMsg{Type: k})
	return next.(Model)
}

func TestPickerNavigation(t *testing.T) {
	m := New(nil, nil, t.TempDir())

	if got := m.Params().KeyName; got != "A_Minor" {
		t.Fatalf("initial key = %q, want A_Minor", got)
	}

	m = press(m, tea.KeyLeft) // wraps to last key
	if got := m.Params().KeyName; got != "G_Minor" {
		t.Errorf("key after left = %q, want G_Minor", got)
	}

	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyRight)
	m = press(m, tea.KeyRight)
	if got := m.Params().Tempo; got != 89 {
		t.Errorf("tempo = %d, want 89", got)
	}

	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown) // stays on the last row
	m = press(m, tea.KeyRight)
	if got := m.Params().Melody.Amplitude; got != 7 {
		t.Errorf("melody amplitude = %d, want 7", got)
	}

	if !strings.Contains(m.View(), "Synth_G_Minor_89_Bass(4, 2)_Mel(7, 0.2).mid") {
		t.Error("picker view does not show the selected file name")
	}
}

func TestEnterStartsRendering(t *testing.T) {
	m := New(nil, nil, t.TempDir())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(Model).state != StateRendering {
		t.Errorf("state = %v, want StateRendering", next.(Model).state)
	}
	if cmd == nil {
		t.Error("enter should return a render command")
	}
}

func TestPerformRender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	m := New(nil, nil, dir)

	msg := m.performRender()()
	done, ok := msg.(renderDoneMsg)
	if !ok {
		t.Fatalf("performRender() returned %T, want renderDoneMsg", msg)
	}
	if done.err != nil {
		t.Fatalf("render error = %v", done.err)
	}
	if want := filepath.Join(dir, "Synth_A_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid"); done.outputFile != want {
		t.Errorf("outputFile = %q, want %q", done.outputFile, want)
	}
	if done.counts != [4]int{32, 64, 16, 64} {
		t.Errorf("counts = %v, want [32 64 16 64]", done.counts)
	}

	data, err := os.ReadFile(done.outputFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if encoder.DetectFormatFromContent(data) != encoder.FormatMIDI {
		t.Error("output is not a MIDI file")
	}

	next, _ := m.Update(done)
	result := next.(Model)
	if result.state != StateResult {
		t.Errorf("state = %v, want StateResult", result.state)
	}
	if !strings.Contains(result.View(), "Piece written") {
		t.Error("result view does not report success")
	}

	back := press(result, tea.KeyEnter)
	if back.state != StatePicker {
		t.Errorf("state after enter = %v, want StatePicker", back.state)
	}
}

func TestQuit(t *testing.T) {
	m := New(nil, nil, t.TempDir())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
