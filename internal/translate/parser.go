package translate

import (
	"strings"
)

const defaultNotes = "Conversion completed"

// ExtractCodeBlock splits a completion response into (code, notes).
//
// The first fenced code block becomes the code; everything outside it
// becomes the notes. Fences with or without a language tag are
// accepted, and the fence markers are stripped exactly once. A response
// with no fence is treated entirely as code with placeholder notes.
func ExtractCodeBlock(response string) (string, string) {
	open := strings.Index(response, "```")
	if open < 0 {
		return strings.TrimSpace(response), defaultNotes
	}

	// Skip the optional language tag: everything up to the end of the
	// fence line.
	rest := response[open+3:]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		// Opening fence with nothing after it; treat the whole
		// response as code.
		return strings.TrimSpace(response), defaultNotes
	}
	body := rest[nl+1:]

	closing := strings.Index(body, "```")
	if closing < 0 {
		// Unterminated fence: take everything after the opening fence.
		code := strings.TrimSpace(body)
		notes := strings.TrimSpace(response[:open])
		if notes == "" {
			notes = defaultNotes
		}
		return code, notes
	}

	code := strings.TrimSpace(body[:closing])

	var notes strings.Builder
	notes.WriteString(strings.TrimSpace(response[:open]))
	after := body[closing+3:]
	if trimmed := strings.TrimSpace(after); trimmed != "" {
		if notes.Len() > 0 {
			notes.WriteString("\n\n")
		}
		notes.WriteString(trimmed)
	}

	if notes.Len() == 0 {
		return code, defaultNotes
	}
	return code, notes.String()
}
