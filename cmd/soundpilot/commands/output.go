package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/soundpilot/soundpilot/internal/classify"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	styleOK    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	styleWarn  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffcc00"))
	styleErr   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f5f"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// renderDecision prints a classification outcome: the decided command in
// green, UNKNOWN in yellow, with the ranked probabilities dimmed below.
func renderDecision(cls classify.Classification) string {
	var b strings.Builder

	if cls.Label == classify.LabelUnknown {
		b.WriteString(styleWarn.Render("UNKNOWN") + styleDim.Render("  (no confident match)"))
	} else {
		b.WriteString(styleOK.Render(cls.Label))
		if cls.ActionID != "" {
			b.WriteString(styleDim.Render("  -> " + cls.ActionID))
		}
	}
	b.WriteString("\n")

	for _, lp := range cls.Ranked {
		b.WriteString(styleDim.Render(fmt.Sprintf("  %-24s %.3f", lp.Label, lp.Proba)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTrain summarises a training outcome on one line.
func renderTrain(res classify.TrainResult) string {
	switch res.Status {
	case classify.TrainStatusTrained:
		return styleOK.Render("trained") + styleDim.Render(fmt.Sprintf(
			"  %d examples, %d labels, %d skipped, %s",
			res.NumExamples, res.NumLabels, res.NumSkipped, res.Duration.Round(time.Millisecond)))
	case classify.TrainStatusInsufficientData:
		return styleWarn.Render("insufficient data") + styleDim.Render(
			fmt.Sprintf("  %d usable example(s); at least 2 required", res.NumExamples))
	default:
		return string(res.Status)
	}
}
