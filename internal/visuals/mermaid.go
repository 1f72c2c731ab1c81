package visuals

import (
	"fmt"
	"html"
	"math"
	"strings"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/forecast"
	"pulse-mcp/internal/report"
)

// maxBars caps the categories drawn in a bar chart.
const maxBars = 20

func axisMax(maxVal float64) int {
	return int(math.Ceil(math.Max(1, maxVal*11/10)))
}

// GenerateBurnDownChart creates a Mermaid xychart-beta with the ideal and
// actual remaining-hours lines. The actual line stops at the last week with
// data.
func GenerateBurnDownChart(points []forecast.BurnDownPoint) string {
	if len(points) == 0 {
		return ""
	}

	var labels, ideal, actual []string
	maxVal := 0.0
	for _, p := range points {
		labels = append(labels, fmt.Sprintf("\"%s\"", p.WeekStart[5:]))
		ideal = append(ideal, fmt.Sprintf("%.1f", p.IdealRemaining))
		maxVal = math.Max(maxVal, p.IdealRemaining)
		if p.ActualRemaining != nil {
			actual = append(actual, fmt.Sprintf("%.1f", math.Max(0, *p.ActualRemaining)))
			maxVal = math.Max(maxVal, *p.ActualRemaining)
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Budget Burn-Down (hours remaining)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Hours\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(ideal, ", ")))
	if len(actual) > 0 {
		sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(actual, ", ")))
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateUtilizationChart creates a bar chart of utilization per person
// with a 100% reference line.
func GenerateUtilizationChart(rows []capacity.Utilization) string {
	if len(rows) == 0 {
		return ""
	}

	var labels, values, target []string
	maxVal := 100.0
	for i, r := range rows {
		if i == maxBars {
			break
		}
		name := r.DisplayName
		if name == "" {
			name = r.PersonID
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "'")))
		values = append(values, fmt.Sprintf("%.1f", r.UtilizationPercent))
		target = append(target, "100")
		maxVal = math.Max(maxVal, r.UtilizationPercent)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Utilization vs Allocation (%)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Utilization %%\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(target, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateDailyHoursChart creates a bar chart of hours logged per day.
func GenerateDailyHoursChart(days []report.DayHours) string {
	if len(days) == 0 {
		return ""
	}

	var labels, values []string
	maxVal := 0.0
	for _, d := range days {
		labels = append(labels, fmt.Sprintf("\"%s\"", d.Date[5:]))
		values = append(values, fmt.Sprintf("%.1f", d.Hours))
		maxVal = math.Max(maxVal, d.Hours)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Hours Logged per Day\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Hours\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// BurnDownDocument renders a standalone markdown page for a project
// burn-down: chart, projected completion and the weekly table.
func BurnDownDocument(project string, budgetHours float64, points []forecast.BurnDownPoint, projected *string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s burn-down\n\n", project))
	sb.WriteString(fmt.Sprintf("Budget: %.1f hours\n\n", budgetHours))
	if projected != nil {
		sb.WriteString(fmt.Sprintf("Projected exhaustion at the current burn: week of %s\n\n", *projected))
	}
	if chart := GenerateBurnDownChart(points); chart != "" {
		sb.WriteString(chart)
		sb.WriteString("\n\n")
	}

	sb.WriteString("| Week | Ideal remaining | Actual remaining |\n")
	sb.WriteString("|---|---:|---:|\n")
	for _, p := range points {
		actual := ""
		if p.ActualRemaining != nil {
			actual = fmt.Sprintf("%.1f", *p.ActualRemaining)
			if p.IsLastActual {
				actual += " (latest)"
			}
		}
		sb.WriteString(fmt.Sprintf("| %s | %.1f | %s |\n", p.WeekStart, p.IdealRemaining, actual))
	}
	return sb.String()
}

// HTMLPage wraps Mermaid fenced blocks and markdown text in a standalone page
// that renders the charts in a browser.
func HTMLPage(title string, markdown string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(title)))
	sb.WriteString("<script type=\"module\">import mermaid from \"https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs\"; mermaid.initialize({ startOnLoad: true });</script>\n")
	sb.WriteString("</head>\n<body>\n")

	inChart := false
	var text []string
	flush := func() {
		if len(text) > 0 {
			sb.WriteString("<pre>")
			sb.WriteString(html.EscapeString(strings.Join(text, "\n")))
			sb.WriteString("</pre>\n")
			text = nil
		}
	}
	for _, line := range strings.Split(markdown, "\n") {
		switch {
		case line == "```mermaid":
			flush()
			inChart = true
			sb.WriteString("<pre class=\"mermaid\">\n")
		case inChart && line == "```":
			inChart = false
			sb.WriteString("</pre>\n")
		case inChart:
			sb.WriteString(html.EscapeString(line))
			sb.WriteString("\n")
		default:
			text = append(text, line)
		}
	}
	flush()
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
