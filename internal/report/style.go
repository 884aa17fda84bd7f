// Package report renders a vtable.Result as the reference textual layout
// or as the spec-mandated JSON array. Styling follows the teacher's
// ui/colorize package in spirit — distinct colors per field, gated on an
// environment override — reimplemented over charmbracelet/lipgloss since
// disassembly highlighting (colorize's actual job) doesn't apply here.
package report

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// IDA-influenced palette, the same family of colors the teacher's
// colorize package used for addresses, labels and comments.
var (
	addressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC800"))
	classStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#56BCD6")).Bold(true)
	kindStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	memberStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B4B4B4"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
)

// colorDisabled mirrors the teacher's IsDisabled env check, adding a
// forceNoColor override the CLI's --no-color flag sets directly.
var forceNoColor bool

// SetNoColor forces every style in this package to a no-op regardless of
// the environment, for the --no-color flag.
func SetNoColor(v bool) { forceNoColor = v }

func colorDisabled() bool {
	return forceNoColor || os.Getenv("NO_COLOR") != "" || os.Getenv("VTABLEDUMP_NO_COLOR") != ""
}

func render(style lipgloss.Style, s string) string {
	if colorDisabled() {
		return s
	}
	return style.Render(s)
}

func styleAddress(s string) string { return render(addressStyle, s) }
func styleClass(s string) string   { return render(classStyle, s) }
func styleKind(s string) string    { return render(kindStyle, s) }
func styleMember(s string) string  { return render(memberStyle, s) }
func styleDetail(s string) string  { return render(detailStyle, s) }
func styleBorder(s string) string  { return render(borderStyle, s) }
func styleError(s string) string   { return render(errorStyle, s) }

// StyleError applies the same styling the textual report would use for an
// error to a string, for callers outside this package reporting a failure
// tied to a rendered record (e.g. the CLI's best-effort skip log), mirroring
// the teacher's colorize.Error usage in cmd/galago/main.go.
func StyleError(s string) string { return styleError(s) }
