package resume

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxSectionChars caps each serialized experience/education block so a
// long resume cannot crowd out the conversation in the system instruction.
const maxSectionChars = 4000

// PromptBlock renders the resume as the labelled lines the assistant's
// system instruction embeds.
func PromptBlock(r *Resume) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", r.Name)
	fmt.Fprintf(&sb, "Skills: %s\n", strings.Join(r.Skills, ", "))
	fmt.Fprintf(&sb, "Experience: %s\n", section(r.Experience))
	fmt.Fprintf(&sb, "Education: %s", section(r.Education))
	return sb.String()
}

func section(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	s := string(b)
	if s == "null" {
		return "[]"
	}
	return truncate(s, maxSectionChars)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}

// Preview returns the first n bytes of text followed by "...", the form the
// parse endpoint echoes back as rawText.
func Preview(text string, n int) string {
	if len(text) <= n {
		return text + "..."
	}
	return truncate(text, n)
}
