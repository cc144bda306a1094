package room

import (
	"bytes"
	"os"
	"time"
)

const (
	stuckLineMaxAttempts = 3
	stuckLineMaxAge      = 10 * time.Second
)

// parseFunc turns one raw JSONL line into the shared row shape.
type parseFunc func(raw []byte) (row, error)

// stuckInfo tracks repeated-failure state for a single unparsed line,
// across refreshes, so the stuck-line recovery thresholds (spec.md §4.1)
// can be enforced: 3 consecutive failed parses, or 10s unparsed, whichever
// comes first.
type stuckInfo struct {
	attempts    int
	firstFailed time.Time
}

// fileReader incrementally tails a JSONL file, caching parsed rows by
// 1-indexed line number and handling partial-write tails: a line that fails
// to parse is deferred (the read cursor does not advance past it) unless it
// has become "stuck" per the thresholds above, in which case it is skipped
// with a warning.
type fileReader struct {
	parse parseFunc

	rows   []row // rows[i] is line i+1; only successfully parsed lines are stored
	cursor int   // highest line number fully consumed (parsed or skipped)
	stuck  map[int]*stuckInfo

	lastWarning string // most recent stuck-line warning, surfaced by callers
}

func newFileReader(parse parseFunc) *fileReader {
	return &fileReader{parse: parse, stuck: make(map[int]*stuckInfo)}
}

// refresh reads path from the current cursor to EOF, parsing any new
// complete lines. It returns the new cursor value. Lines already consumed
// are never re-read.
func (fr *fileReader) refresh(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fr.cursor, nil
		}
		return fr.cursor, err
	}

	lines := splitLines(data)
	now := time.Now()

	for lineNo := fr.cursor + 1; lineNo <= len(lines); lineNo++ {
		raw := lines[lineNo-1]
		if len(bytes.TrimSpace(raw)) == 0 {
			// Blank lines consume a line number but carry no event.
			fr.appendRow(lineNo, row{})
			fr.cursor = lineNo
			delete(fr.stuck, lineNo)
			continue
		}

		parsed, perr := fr.parse(raw)
		if perr == nil {
			fr.appendRow(lineNo, parsed)
			fr.cursor = lineNo
			delete(fr.stuck, lineNo)
			continue
		}

		// Parse failure: is this line the tail of the file (no further
		// lines to examine), or mid-stream corruption? Either way the
		// same stuck-line bookkeeping applies.
		info := fr.stuck[lineNo]
		if info == nil {
			info = &stuckInfo{firstFailed: now}
			fr.stuck[lineNo] = info
		}
		info.attempts++

		stuck := info.attempts >= stuckLineMaxAttempts || now.Sub(info.firstFailed) >= stuckLineMaxAge
		if !stuck {
			// Defer: do not advance the cursor past this line. Retried on
			// the next refresh.
			break
		}

		fr.lastWarning = "skipping stuck JSONL line after repeated parse failures"
		fr.appendRow(lineNo, row{})
		fr.cursor = lineNo
		delete(fr.stuck, lineNo)
	}

	return fr.cursor, nil
}

func (fr *fileReader) appendRow(lineNo int, r row) {
	for len(fr.rows) < lineNo {
		fr.rows = append(fr.rows, row{})
	}
	fr.rows[lineNo-1] = r
}

// rowsBetween returns rows with line numbers in (lo, hi], 1-indexed.
func (fr *fileReader) rowsBetween(lo, hi int) []row {
	if hi > len(fr.rows) {
		hi = len(fr.rows)
	}
	if lo < 0 {
		lo = 0
	}
	if lo >= hi {
		return nil
	}
	return fr.rows[lo:hi]
}

func (fr *fileReader) takeWarning() string {
	w := fr.lastWarning
	fr.lastWarning = ""
	return w
}

// splitLines splits file content on '\n' without including trailing empty
// element when the file ends with a newline; a final element with no
// trailing newline is treated as a genuine (possibly partial) line.
func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	trimmedTrailingNL := bytes.HasSuffix(data, []byte("\n"))
	parts := bytes.Split(data, []byte("\n"))
	if trimmedTrailingNL && len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}
