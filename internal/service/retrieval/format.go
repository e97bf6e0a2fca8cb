package retrieval

import (
	"fmt"
	"strings"

	"github.com/sandevgo/momentum/internal/core"
)

// Rendering overhead per fragment line (tier tag, brackets, newline).
const fragmentOverhead = 10

const elisionMarker = "\n...[truncated]...\n"

// Format assembles the final context blob for the generation prompt:
// profile, completion history and fragment sections, each admitted only
// while the running total stays within maxLength. A head/tail truncation
// is the last defense in case the joined string still overflows.
func Format(fragments []core.ScoredFragment, profile *core.UserProfile, history *core.CompletionHistory, maxLength int) string {
	var sections []string
	running := 0

	if profile != nil {
		sec := renderProfile(profile)
		if sec != "" && running+charLen(sec) <= maxLength {
			sections = append(sections, sec)
			running += charLen(sec)
		}
	}

	if history != nil {
		sec := renderHistory(history)
		if running+charLen(sec) <= maxLength {
			sections = append(sections, sec)
			running += charLen(sec)
		}
	}

	if len(fragments) > 0 {
		var b strings.Builder
		b.WriteString("Relevant Memory:")
		running += charLen("Relevant Memory:")

		for i, f := range fragments {
			if running+charLen(f.Text)+fragmentOverhead > maxLength {
				fmt.Fprintf(&b, "\n[%d more fragments omitted]", len(fragments)-i)
				break
			}
			line := fmt.Sprintf("\n[%s] %s", relevanceTier(f.Similarity), f.Text)
			b.WriteString(line)
			running += charLen(line)
		}
		sections = append(sections, b.String())
	}

	return TruncateMiddle(strings.Join(sections, "\n\n"), maxLength)
}

func relevanceTier(similarity float64) string {
	switch {
	case similarity > 0.8:
		return "High"
	case similarity > 0.65:
		return "Medium"
	default:
		return "Low"
	}
}

func renderProfile(p *core.UserProfile) string {
	var lines []string
	if p.EducationLevel != "" {
		lines = append(lines, "Education: "+p.EducationLevel)
	}
	if p.Institution != "" {
		lines = append(lines, "Institution: "+p.Institution)
	}
	if p.Major != "" {
		lines = append(lines, "Major: "+p.Major)
	}
	if p.Year != "" {
		lines = append(lines, "Year: "+p.Year)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Student Profile:\n" + strings.Join(lines, "\n")
}

func renderHistory(h *core.CompletionHistory) string {
	lines := []string{
		fmt.Sprintf("Average completion rate: %.0f%%", h.AvgCompletionRate*100),
		fmt.Sprintf("Typical daily capacity: %d minutes", h.DailyCapacityMin),
	}
	if len(h.PreferredTimes) > 0 {
		lines = append(lines, "Preferred study times: "+strings.Join(h.PreferredTimes, ", "))
	}
	return "Study History:\n" + strings.Join(lines, "\n")
}

// TruncateMiddle keeps the first and last maxLength/2 characters of s,
// joined by an elision marker. Returns s unchanged when it already fits.
func TruncateMiddle(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	half := maxLength / 2
	return string(runes[:half]) + elisionMarker + string(runes[len(runes)-half:])
}
