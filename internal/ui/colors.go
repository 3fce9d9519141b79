package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/jellyrename/internal/session"
)

type role int

const (
	roleSuccess role = iota
	roleError
	roleWarning
	roleInfo
	roleDim
	roleShow
	roleAction
	rolePath
	roleCursor
	roleCount
)

// ANSI 16-color palette codes per role.
var roleColors = [roleCount]struct {
	color string
	bold  bool
}{
	roleSuccess: {"10", true},
	roleError:   {"9", true},
	roleWarning: {"11", false},
	roleInfo:    {"12", false},
	roleDim:     {"8", false},
	roleShow:    {"5", false},
	roleAction:  {"12", true},
	rolePath:    {"15", false},
	roleCursor:  {"13", true},
}

var styles [roleCount]lipgloss.Style

func init() {
	initStyles()
}

// initStyles builds the styles, plain when output is not a color terminal.
func initStyles() {
	for r := role(0); r < roleCount; r++ {
		s := lipgloss.NewStyle()
		if IsTerminal() {
			s = s.Foreground(lipgloss.Color(roleColors[r].color)).Bold(roleColors[r].bold)
		}
		styles[r] = s
	}
}

func paint(r role, text string) string {
	return styles[r].Render(text)
}

func Success(text string) string { return paint(roleSuccess, text) }
func Error(text string) string { return paint(roleError, text) }
func Warning(text string) string { return paint(roleWarning, text) }
func Info(text string) string { return paint(roleInfo, text) }
func Dim(text string) string { return paint(roleDim, text) }
func Show(text string) string { return paint(roleShow, text) }
func Action(text string) string { return paint(roleAction, text) }
func Path(text string) string { return paint(rolePath, text) }

// StatusLabel colors an entry status.
func StatusLabel(s session.Status) string {
	switch s {
	case session.Renamed, session.Matched:
		return Success(s.String())
	case session.Failed:
		return Error(s.String())
	case session.Unmatched:
		return Warning(s.String())
	case session.Skipped:
		return Dim(s.String())
	default:
		return Info(s.String())
	}
}

func message(r role, symbol, format string, args []interface{}) {
	fmt.Fprintln(os.Stdout, paint(r, symbol)+" "+fmt.Sprintf(format, args...))
}

// SuccessMsg prints a success message
func SuccessMsg(format string, args ...interface{}) { message(roleSuccess, "✓", format, args) }

// ErrorMsg prints an error message
func ErrorMsg(format string, args ...interface{}) { message(roleError, "✗", format, args) }

// WarningMsg prints a warning message
func WarningMsg(format string, args ...interface{}) { message(roleWarning, "⚠", format, args) }

// InfoMsg prints an info message
func InfoMsg(format string, args ...interface{}) { message(roleInfo, "ℹ", format, args) }
