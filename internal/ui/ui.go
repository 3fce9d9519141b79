// Package ui renders jellyrename output for terminals and pipes.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	stdoutTTY = isTTY(os.Stdout)
	stdinTTY  = isTTY(os.Stdin)
	// NO_COLOR, see https://no-color.org.
	colorEnabled = os.Getenv("NO_COLOR") == ""
)

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DisableColors switches every style to plain text.
func DisableColors() {
	colorEnabled = false
	initStyles()
}

// IsTerminal reports whether output is a terminal that takes colors.
func IsTerminal() bool {
	return stdoutTTY && colorEnabled
}

// IsInteractive reports whether stdin and stdout are both terminals, which
// prompts and the show picker need. Colors do not matter.
func IsInteractive() bool {
	return stdoutTTY && stdinTTY
}

// Section prints a blank line and a header.
func Section(title string) {
	title = strings.ToUpper(title)
	if IsTerminal() {
		fmt.Printf("\n%s\n", Action("━━━ "+title+" ━━━"))
		return
	}
	fmt.Printf("\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

// RelativeTime formats t relative to now, "3 minutes ago".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Count formats n with thousands separators and a pluralized noun.
func Count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return humanize.Comma(int64(n)) + " " + noun
}

// FormatDuration rounds d for display: 850ms, 2.5s, 1.2m.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// Confirm asks a yes/no question on the terminal. Anything but y or yes,
// and any non-interactive session, means no.
func Confirm(prompt string) bool {
	if !IsInteractive() {
		return false
	}

	fmt.Print(prompt + " [y/N] ")
	var response string
	fmt.Scanln(&response)
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	}
	return false
}
