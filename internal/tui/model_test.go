package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/grounding"
)

type fakeResponder struct {
	result  conversation.Result
	history []chat.Message
	calls   int
}

func (f *fakeResponder) Turn(_ context.Context, _ string, history []chat.Message, _ *conversation.User) conversation.Result {
	f.calls++
	f.history = history
	return f.result
}

func sized(t *testing.T, r Responder) Model {
	t.Helper()
	m := New(t.Context(), r, nil, "ClimateTrack")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func typeAndSubmit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// runTurn executes the batched command and feeds the reply back.
func runTurn(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command after submit")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a batch of commands")
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if reply, ok := c().(replyMsg); ok {
			next, _ := m.Update(reply)
			return next.(Model)
		}
	}
	t.Fatal("no reply produced")
	return m
}

func TestModel_SuccessfulTurnExtendsHistory(t *testing.T) {
	t.Parallel()

	r := &fakeResponder{result: conversation.Result{Reply: "Move to higher ground.", Outcome: conversation.OutcomeOK, Intent: grounding.IntentHowTo}}
	m := sized(t, r)

	m, cmd := typeAndSubmit(t, m, "what to do in a flood")
	if !m.waiting {
		t.Fatal("model not waiting after submit")
	}
	m = runTurn(t, m, cmd)

	if m.waiting {
		t.Error("still waiting after reply")
	}
	h := m.History()
	if len(h) != 2 || h[0].Content != "what to do in a flood" || h[1].Role != chat.RoleAssistant {
		t.Errorf("history = %+v", h)
	}
	if !strings.Contains(m.viewport.View(), "Move to higher ground.") {
		t.Error("reply not rendered in transcript")
	}

	_, cmd = typeAndSubmit(t, m, "and after?")
	runTurn(t, m, cmd)
	if len(r.history) != 2 {
		t.Errorf("second turn sent %d history messages, want 2", len(r.history))
	}
}

func TestModel_FailedTurnNotRemembered(t *testing.T) {
	t.Parallel()

	r := &fakeResponder{result: conversation.Result{Reply: conversation.ReplyNetwork, Outcome: conversation.OutcomeNetwork}}
	m := sized(t, r)

	m, cmd := typeAndSubmit(t, m, "hello")
	m = runTurn(t, m, cmd)

	if len(m.History()) != 0 {
		t.Errorf("failed turn kept in history: %+v", m.History())
	}
	if !strings.Contains(m.status, "network") {
		t.Errorf("status = %q", m.status)
	}
}

func TestModel_BlankInputIgnored(t *testing.T) {
	t.Parallel()

	r := &fakeResponder{}
	m := sized(t, r)

	m, cmd := typeAndSubmit(t, m, "   ")
	if cmd != nil || m.waiting || r.calls != 0 {
		t.Errorf("blank input started a turn")
	}
}

func TestModel_CtrlCQuits(t *testing.T) {
	t.Parallel()

	m := sized(t, &fakeResponder{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Ctrl+C did not quit")
	}
}
