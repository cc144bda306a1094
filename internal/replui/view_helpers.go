package replui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// wrapForWidth width-wraps text to w columns, ANSI-aware, the same
// ansi.Wrap usage as internal/runtui/model_view.go's wrapRenderableLines.
// Used before appending a block to scrollback so long single-line agent
// responses don't get silently truncated by the viewport.
func wrapForWidth(text string, w int) []string {
	if w < 1 {
		w = 1
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		wrapped := ansi.Wrap(line, w, " ")
		out = append(out, strings.Split(wrapped, "\n")...)
	}
	return out
}
