package commands

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/satriahrh/charla/domain/entities"
)

// styles for the terminal transcript
type styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Frame     lipgloss.Style
	Hint      lipgloss.Style
	Error     lipgloss.Style
}

func newStyles() styles {
	return styles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6e7681")).
			Padding(0, 1).
			Width(72),
		Hint:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff7b72")),
	}
}

// renderTranscript draws the visible turns inside a frame
func renderTranscript(w io.Writer, s styles, turns iter.Seq[entities.Turn]) {
	var lines []string
	for turn := range turns {
		label := s.Assistant.Render("Assistant:")
		if turn.Role == entities.RoleUser {
			label = s.User.Render("You:")
		}
		lines = append(lines, label+" "+turn.Content)
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, s.Frame.Render(strings.Join(lines, "\n")))
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

func translationLabel(target string) string {
	name, ok := languageNames[strings.ToLower(target)]
	if !ok {
		name = strings.ToUpper(target)
	}
	return name + " translation:"
}
