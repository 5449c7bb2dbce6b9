package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/TGArchive/internal/archive"
	"github.com/BTreeMap/TGArchive/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	promptStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	senderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func panel(color string, lines ...string) string {
	return panelStyle.BorderForeground(lipgloss.Color(color)).Render(strings.Join(lines, "\n"))
}

// Header prints the application banner.
func (c *Console) Header() {
	fmt.Fprintln(c.out, panel("4",
		titleStyle.Render("Telegram Chat Archiver"),
		dimStyle.Render("A robust tool for archiving conversations"),
	))
}

// Target prints the resolved conversation and its transcript file.
func (c *Console) Target(t models.Target, file string) {
	fmt.Fprintln(c.out, panel("2",
		"Target: "+promptStyle.Render(t.Name),
		"ID: "+dimStyle.Render(t.Key()),
		"File: "+titleStyle.Render(file),
	))
}

// Entry prints one archived line.
func (c *Console) Entry(e archive.Entry) {
	fmt.Fprintf(c.out, "%s %s %s\n", dimStyle.Render(e.Timestamp), senderStyle.Render(e.Sender+":"), e.Preview)
}

// Summary prints the end of run report.
func (c *Console) Summary(s archive.Summary, file string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, panel("2",
		titleStyle.Render("Session Summary"),
		successStyle.Bold(true).Render("Fetch Complete!"),
		"",
		"Range: "+s.Range(),
		fmt.Sprintf("Total Messages: %d", s.Count),
		fmt.Sprintf("Time Taken: %.2f seconds", s.Elapsed.Seconds()),
		fmt.Sprintf("Speed: %.2f msgs/sec", s.Rate()),
		"File: "+file,
	))
}

// Hints prints a titled list of numbered tips.
func (c *Console) Hints(title string, hints []string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, warnStyle.Render("Tip:")+" "+title)
	for i, h := range hints {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, h)
	}
}

func (c *Console) Info(msg string)    { fmt.Fprintln(c.out, infoStyle.Render(msg)) }
func (c *Console) Warn(msg string)    { fmt.Fprintln(c.out, warnStyle.Render(msg)) }
func (c *Console) Error(msg string)   { fmt.Fprintln(c.out, errorStyle.Render(msg)) }
func (c *Console) Success(msg string) { fmt.Fprintln(c.out, successStyle.Render(msg)) }
func (c *Console) Dim(msg string)     { fmt.Fprintln(c.out, dimStyle.Render(msg)) }
