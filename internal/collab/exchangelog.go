package collab

import (
	"fmt"
	"os"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
)

// ExchangeLog is the markdown transcript of one collab session, per
// spec.md §6.7. It is written incrementally as messages arrive and closed
// with a summary footer.
type ExchangeLog struct {
	f *os.File
}

// NewExchangeLog creates (or truncates) the log file at path.
func NewExchangeLog(path string) (*ExchangeLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("collab: creating exchange log %s: %w", path, err)
	}
	return &ExchangeLog{f: f}, nil
}

// Append writes one message block, attributed to source, with collab
// signals stripped from the transcripted body.
func (l *ExchangeLog) Append(source agentid.Agent, text string, at time.Time) error {
	body := stripAllSignals(text)
	_, err := fmt.Fprintf(l.f, "## %s · %s\n\n%s\n\n---\n\n", source, at.Format("3:04 PM"), body)
	return err
}

// Close writes the summary footer and closes the file.
func (l *ExchangeLog) Close(turnsCompleted int, stopReason string) error {
	if _, err := fmt.Fprintf(l.f, "*Turns: %d · Stop reason: %s*\n", turnsCompleted, stopReason); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
