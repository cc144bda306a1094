// Package router is claodex's Router (spec.md §4.3): delta composition
// between the two agents' transcripts, the two send operations, the
// pending-watch model, the turn-end wait/poll loop, and cursor
// synchronization. It holds no UI state; every failure surfaces as a typed
// error from internal/clerr, following internal/agent's convention of
// returning inspectable errors rather than logging and swallowing them.
package router

import (
	"strings"

	"github.com/agusx1211/claodex/internal/room"
)

// Block is one section of a composed payload: a source label ("user",
// "claude", or "codex") and its body text.
type Block struct {
	Source string
	Text   string
}

const headerPrefix = "--- "
const headerSuffix = " ---"

func renderHeader(source string) string {
	return headerPrefix + source + headerSuffix
}

// RenderPayload renders blocks into the injected wire format: each block is
// a header line followed by its body, separated by one blank line.
func RenderPayload(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, renderHeader(b.Source)+"\n"+b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// parseComposedBlocks reverses RenderPayload: it recognizes header lines of
// the form "--- {source} ---" at the start of a line and splits text into
// the blocks between them. Returns nil if text does not begin with a
// header line (i.e. it is not a previously-composed payload at all).
func parseComposedBlocks(text string) []Block {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !isHeaderLine(lines[0]) {
		return nil
	}

	var blocks []Block
	var source string
	var body []string
	flush := func() {
		if source != "" {
			blocks = append(blocks, Block{Source: source, Text: strings.TrimSuffix(strings.Join(body, "\n"), "\n")})
		}
	}
	for _, line := range lines {
		if isHeaderLine(line) {
			flush()
			source = headerSource(line)
			body = nil
			continue
		}
		body = append(body, line)
	}
	flush()

	for i, b := range blocks {
		blocks[i].Text = strings.Trim(b.Text, "\n")
	}
	return blocks
}

func isHeaderLine(line string) bool {
	return strings.HasPrefix(line, headerPrefix) && strings.HasSuffix(line, headerSuffix) &&
		len(line) > len(headerPrefix)+len(headerSuffix)
}

func headerSource(line string) string {
	return strings.TrimSuffix(strings.TrimPrefix(line, headerPrefix), headerSuffix)
}

// stripInjectedContext implements header hygiene (spec.md §4.3.1 step 4):
// if text is itself a previously-composed payload (begins with a header
// line), only the most recent "user" block's body survives; everything
// else — claude/codex replies and stale injected context — is discarded.
// If no block has source "user" (e.g. the payload ends in an agent reply
// with no trailing interjection), the original text is returned unchanged,
// matching strip_injected_context's fallback. Idempotent: a returned user
// block body holds no header line, and the fallback returns its input
// unchanged, so a second call returns the same text.
func stripInjectedContext(text string) string {
	blocks := parseComposedBlocks(text)
	if len(blocks) == 0 {
		return text
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Source == sourceUser {
			if body := strings.TrimSpace(blocks[i].Text); body != "" {
				return blocks[i].Text
			}
		}
	}
	return text
}

// lastUserBlockText returns the normalized body of the last block in blocks
// whose source is "user", or "" if there is none. Used to compute a
// PendingSend's anchor (spec.md §4.3.3).
func lastUserBlockText(blocks []Block) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Source == sourceUser {
			return room.NormalizeAnchor(blocks[i].Text)
		}
	}
	return ""
}

const sourceUser = "user"
