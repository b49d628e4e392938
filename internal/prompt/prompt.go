// Package prompt assembles the text sent to the model.
package prompt

import "strings"

const (
	// Framing is the fixed first line of every prompt.
	Framing = "You are promptd, a compact local assistant."
	// ClipboardLimit is the number of runes of clipboard text included.
	ClipboardLimit = 200

	unknownApp = "Unknown App"
)

// Context is the lightweight context captured alongside the user's input.
type Context struct {
	FrontmostApp string
	Clipboard    string
}

// Build returns the final prompt: framing, frontmost app label, an optional
// clipboard excerpt, a blank line and the user's literal input.
func Build(input string, c Context) string {
	app := strings.TrimSpace(c.FrontmostApp)
	if app == "" {
		app = unknownApp
	}
	lines := []string{Framing, "Frontmost app: " + app + "."}
	// The excerpt is the raw leading text; whitespace-only clipboards are
	// treated as empty.
	if strings.TrimSpace(c.Clipboard) != "" {
		lines = append(lines, "Clipboard: "+truncate(c.Clipboard, ClipboardLimit))
	}
	lines = append(lines, "", "User: "+input)
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
