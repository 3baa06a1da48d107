package entities

import (
	"errors"
	"slices"
	"testing"

	"github.com/satriahrh/charla/domain"
)

const tutorPreamble = "You are a Spanish tutor."

func TestSessionCreation(t *testing.T) {
	session := NewSession(tutorPreamble)

	history := session.FullHistory()
	if len(history) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(history))
	}

	want := Turn{Role: RoleSystem, Content: tutorPreamble}
	if history[0] != want {
		t.Errorf("Expected seed turn %+v, got %+v", want, history[0])
	}

	if session.ID == "" {
		t.Error("Expected session ID to be set")
	}
}

func TestAppendUserTurn(t *testing.T) {
	session := NewSession(tutorPreamble)

	if err := session.AppendUserTurn("Hola"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []Turn{
		{Role: RoleSystem, Content: tutorPreamble},
		{Role: RoleUser, Content: "Hola"},
	}
	if got := session.FullHistory(); !slices.Equal(got, want) {
		t.Errorf("Expected history %+v, got %+v", want, got)
	}
}

func TestAppendUserTurn_RejectsEmpty(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "spaces", text: "   "},
		{name: "tabs and newlines", text: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(tutorPreamble)
			_ = session.AppendUserTurn("Hola")
			session.AppendAssistantTurn("¡Hola! ¿Qué tal?")
			before := session.FullHistory()

			err := session.AppendUserTurn(tt.text)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("Expected ErrInvalidInput, got %v", err)
			}

			if got := session.FullHistory(); !slices.Equal(got, before) {
				t.Errorf("Expected history to be unchanged, got %+v", got)
			}
		})
	}
}

func TestAppendAssistantTurn_AcceptsEmpty(t *testing.T) {
	session := NewSession(tutorPreamble)
	_ = session.AppendUserTurn("Hola")
	session.AppendAssistantTurn("")

	history := session.FullHistory()
	last := history[len(history)-1]
	if last != (Turn{Role: RoleAssistant, Content: ""}) {
		t.Errorf("Expected empty assistant turn, got %+v", last)
	}
}

func TestFullHistory_PreservesOrder(t *testing.T) {
	session := NewSession(tutorPreamble)

	var want []Turn
	want = append(want, Turn{Role: RoleSystem, Content: tutorPreamble})
	for i, text := range []string{"uno", "dos", "tres", "cuatro", "cinco"} {
		if i%2 == 0 {
			if err := session.AppendUserTurn(text); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			want = append(want, Turn{Role: RoleUser, Content: text})
		} else {
			session.AppendAssistantTurn(text)
			want = append(want, Turn{Role: RoleAssistant, Content: text})
		}
	}

	got := session.FullHistory()
	if len(got) != 6 {
		t.Fatalf("Expected 6 turns, got %d", len(got))
	}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestFullHistory_ReturnsCopy(t *testing.T) {
	session := NewSession(tutorPreamble)
	history := session.FullHistory()
	history[0].Content = "tampered"

	if session.FullHistory()[0].Content != tutorPreamble {
		t.Error("Mutating the returned history must not change the session")
	}
}

func TestVisibleHistory(t *testing.T) {
	session := NewSession(tutorPreamble)

	if n := len(slices.Collect(session.VisibleHistory())); n != 0 {
		t.Errorf("Expected no visible turns, got %d", n)
	}

	_ = session.AppendUserTurn("Hola")
	session.AppendAssistantTurn("¡Hola!")
	_ = session.AppendUserTurn("¿Cómo estás?")

	seq := session.VisibleHistory()
	visible := slices.Collect(seq)
	if len(visible) != session.Len()-1 {
		t.Errorf("Expected %d visible turns, got %d", session.Len()-1, len(visible))
	}
	for _, turn := range visible {
		if turn.Role == RoleSystem {
			t.Error("Visible history must not include the system turn")
		}
	}
	if visible[0].Content != "Hola" || visible[2].Content != "¿Cómo estás?" {
		t.Errorf("Expected chronological order, got %+v", visible)
	}

	// restartable, and reflects later appends
	session.AppendAssistantTurn("Bien")
	if n := len(slices.Collect(seq)); n != 4 {
		t.Errorf("Expected 4 visible turns on second pass, got %d", n)
	}

	// stopping early must not mutate anything
	for range seq {
		break
	}
	if session.Len() != 5 {
		t.Errorf("Expected 5 turns, got %d", session.Len())
	}
}

func TestWindowTurns(t *testing.T) {
	turns := []Turn{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "u1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "u2"},
		{Role: RoleAssistant, Content: "a2"},
		{Role: RoleUser, Content: "u3"},
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "unbounded", n: 0, want: []string{"sys", "u1", "a1", "u2", "a2", "u3"}},
		{name: "larger than history", n: 10, want: []string{"sys", "u1", "a1", "u2", "a2", "u3"}},
		{name: "last three", n: 3, want: []string{"sys", "u2", "a2", "u3"}},
		{name: "last one", n: 1, want: []string{"sys", "u3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindowTurns(turns, tt.n)
			var contents []string
			for _, turn := range got {
				contents = append(contents, turn.Content)
			}
			if !slices.Equal(contents, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, contents)
			}
		})
	}
}
