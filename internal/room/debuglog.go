package room

import (
	"bufio"
	"os"
	"strings"
	"time"
)

// stopEventMarker is the literal substring the claude CLI writes to its
// debug log when it runs the Stop hook, per spec.md §4.1's stop-event
// fallback.
const stopEventMarker = "Getting matching hook commands for Stop"

// DebugLogPath returns the path claude's debug log is expected to live at,
// per spec.md §6.3: {debug_root}/{session_id}.txt.
func DebugLogPath(debugRoot, sessionID string) string {
	if strings.HasSuffix(debugRoot, "/") {
		return debugRoot + sessionID + ".txt"
	}
	return debugRoot + "/" + sessionID + ".txt"
}

// LatestStopEventAfter scans a claude debug log for the most recent Stop
// hook line whose timestamp is strictly greater than after. Lines are
// expected to start with an RFC3339Nano timestamp followed by a space and
// the message body, one entry per line, appended in order — so the last
// matching line in the file is also the most recent chronologically.
func LatestStopEventAfter(path string, after time.Time) (found bool, at time.Time, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, openErr
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, stopEventMarker) {
			continue
		}
		ts, ok := leadingTimestamp(line)
		if !ok {
			continue
		}
		if ts.After(after) {
			found = true
			at = ts
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return found, at, scanErr
	}
	return found, at, nil
}

// leadingTimestamp parses the RFC3339Nano timestamp at the start of a debug
// log line, up to the first space.
func leadingTimestamp(line string) (time.Time, bool) {
	idx := strings.IndexByte(line, ' ')
	if idx <= 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, line[:idx])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
