package replui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/claodex/internal/repl"
)

// Run launches the claodex REPL, blocking until the user quits. Grounded
// in internal/runtui/run.go's Run: construct the model, hand it to
// tea.NewProgram, run it to completion.
func Run(ctrl *repl.Controller) error {
	model := NewModel(ctrl)
	p := tea.NewProgram(model)
	_, err := p.Run()
	return err
}
