package stats

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxProcessRows caps the interaction table.
const maxProcessRows = 10

// FormatSummary renders the transport summary for the console. An
// unrecognized document yields a single note line.
func FormatSummary(runName string, s Summary) string {
	if !s.Recognized {
		return noteStyle.Render("(no transport statistics in result)") + "\n"
	}

	rows := []string{
		titleStyle.Render("Transport Summary: " + runName),
		"",
		renderKeyValue("Steps", FormatNumber(int64(s.Steps)), ""),
		renderKeyValue("Peak Alive", FormatNumber(int64(s.PeakAlive)), "tracks"),
		renderKeyValue("Energy Deposited", fmt.Sprintf("%.4g", s.TotalEdep), "MeV"),
		renderKeyValue("Total Time", FormatSeconds(s.TotalTime), ""),
	}

	if s.Steps > 0 && s.StepTimeTotal > 0 {
		rows = append(rows,
			"",
			sectionHeaderStyle.Render("Step Time"),
			renderKeyValue("Sum", FormatSeconds(s.StepTimeTotal), ""),
			renderKeyValue("P50 (median)", FormatSeconds(s.StepTimeP50), ""),
			renderKeyValue("P95", FormatSeconds(s.StepTimeP95), ""),
			renderKeyValue("P99", FormatSeconds(s.StepTimeP99), ""),
		)
	}

	if len(s.Processes) > 0 {
		rows = append(rows,
			"",
			sectionHeaderStyle.Render(fmt.Sprintf("Interactions (%s total)", FormatNumber(int64(s.TotalInteractions())))),
		)
		for i, p := range s.Processes {
			if i == maxProcessRows {
				rows = append(rows, unitStyle.Render(fmt.Sprintf("... %d more", len(s.Processes)-maxProcessRows)))
				break
			}
			rows = append(rows, renderKeyValue(p.Name, FormatNumber(int64(p.Count)), ""))
		}
	}

	if s.Particles > 0 {
		rows = append(rows, "", renderKeyValue("Particle Types", fmt.Sprintf("%d", s.Particles), "with step distributions"))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

// =============================================================================
// Formatting Helper Functions
// =============================================================================

// FormatSeconds formats a wall time given in seconds.
func FormatSeconds(sec float64) string {
	if sec <= 0 {
		return "0s"
	}
	d := time.Duration(sec * float64(time.Second))
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d µs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.3f s", d.Seconds())
	default:
		return FormatDuration(d)
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
