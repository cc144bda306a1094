package replui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

// Color palette, carried from internal/tui/styles.go's Catppuccin Mocha
// theme.
var (
	colorBase  = lipgloss.Color("#1e1e2e")
	colorMauve = lipgloss.Color("#cba6f7")
	colorBlue  = lipgloss.Color("#89b4fa")
	colorOver0 = lipgloss.Color("#6c7086")
	colorText  = lipgloss.Color("#cdd6f4")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorBase).
	Background(colorBlue).
	Padding(0, 1)

func newStyledTextInput() textinput.Model {
	in := textinput.New()
	in.Prompt = "> "
	in.PromptStyle = lipgloss.NewStyle().Foreground(colorMauve)
	in.TextStyle = lipgloss.NewStyle().Foreground(colorText)
	in.PlaceholderStyle = lipgloss.NewStyle().Foreground(colorOver0)
	return in
}
