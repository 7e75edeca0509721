package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/starexec/jobview/internal/jobview"
	"github.com/starexec/jobview/internal/models"
)

const helpText = "↑/↓ move • enter open • ← back • r refresh • w time • s sync • n/p page • x dismiss • q quit"

func (m *Model) View() string {
	snap := m.ctrl.Snapshot()

	left := paneStyle.Width(treeWidth).Render(m.renderTree(snap))
	rightWidth := m.width - treeWidth - 3
	if rightWidth < 40 {
		rightWidth = 40
	}
	right := paneStyle.Width(rightWidth).Render(m.renderSpace(snap))

	height := lipgloss.Height(left)
	if h := lipgloss.Height(right); h > height {
		height = h
	}
	divider := dividerStyle.Render(strings.TrimSuffix(strings.Repeat("│\n", height), "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, divider, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus(snap))
}

func (m *Model) renderTree(snap jobview.State) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Job %d", m.jobID)))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("cannot list spaces"))
		return b.String()
	}
	if len(m.tree.rows) == 0 {
		b.WriteString(m.loader.View() + " loading")
		return b.String()
	}
	for i, n := range m.tree.rows {
		marker := "  "
		switch {
		case n.loading:
			marker = m.loader.View() + " "
		case n.expanded:
			marker = "▾ "
		case n.space.HasChildren:
			marker = "▸ "
		}
		line := truncate(strings.Repeat("  ", n.depth)+marker+n.space.Name, treeWidth)

		style := spaceStyle
		if snap.Selected && n.space.ID == snap.SpaceID {
			style = currentStyle
		}
		if i == m.cursor {
			style = selectedStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderSpace(snap jobview.State) string {
	if !snap.Selected {
		return statusStyle.Render("select a job space")
	}
	var b strings.Builder

	timeKind := "cpu"
	if snap.Options.Wallclock {
		timeKind = "wallclock"
	}
	b.WriteString(sectionStyle.Render("Solvers"))
	b.WriteString(statusStyle.Render(fmt.Sprintf("  (%s time)", timeKind)))
	b.WriteString("\n")
	switch {
	case snap.Loading.Summary:
		b.WriteString(m.loader.View() + "\n")
	case snap.SummaryErr != nil:
		b.WriteString(errorStyle.Render("summary unavailable") + "\n")
	case snap.Summary != nil:
		b.WriteString(renderStats(snap.Summary.Rows, false))
	}

	if snap.Overview.Src != "" {
		b.WriteString(statusStyle.Render("overview  " + snap.Overview.LargeSrc))
		b.WriteString("\n")
	}
	if c := snap.Comparison; c.Visible && c.Graph != nil {
		src := c.Graph.Src
		if c.Large != nil {
			src = c.Large.Src
		}
		b.WriteString(statusStyle.Render(fmt.Sprintf("compare %d/%d  %s", c.Config1, c.Config2, src)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderPairs(snap))

	if len(snap.Panels) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Subspaces"))
		b.WriteString("\n")
		for _, p := range snap.Panels {
			b.WriteString(headerStyle.Render(p.Space.Name))
			b.WriteString("\n")
			switch {
			case p.Stats != nil:
				b.WriteString(renderStats(p.Stats.Rows, true))
			case p.Loading:
				b.WriteString(m.loader.View() + "\n")
			case p.Err != nil:
				b.WriteString(errorStyle.Render("unavailable") + "\n")
			}
		}
	}
	return b.String()
}

func (m *Model) renderPairs(snap jobview.State) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Pairs"))
	if snap.Pairs != nil {
		filter := ""
		if snap.Options.SyncResults {
			filter = ", synchronized"
		}
		b.WriteString(statusStyle.Render(fmt.Sprintf("  page %d/%d of %d%s",
			snap.PageIndex()+1, max(snap.PageCount(), 1), snap.Pairs.TotalFiltered, filter)))
	}
	b.WriteString("\n")

	switch {
	case snap.TooManyPairs:
		b.WriteString(statusStyle.Render("too many pairs to list here, download the job instead") + "\n")
	case snap.Loading.Pairs && snap.Pairs == nil:
		b.WriteString(m.loader.View() + "\n")
	case snap.PairsErr != nil:
		b.WriteString(errorStyle.Render("pairs unavailable") + "\n")
	case snap.Pairs != nil:
		for _, p := range snap.Pairs.Rows {
			b.WriteString(fmt.Sprintf("%-24s %-16s %-16s %-12s %10s  %s\n",
				truncate(p.Benchmark.Name, 24), truncate(p.Solver.Name, 16), truncate(p.Config.Name, 16),
				truncate(p.Status, 12), formatDuration(p.Time), p.Result))
		}
	}
	return b.String()
}

func (m *Model) renderStatus(snap jobview.State) string {
	switch {
	case snap.Notice != "":
		return noticeStyle.Render(" " + snap.Notice + " ")
	case m.status != "":
		return errorStyle.Render(m.status)
	case m.loading:
		return statusStyle.Render(m.loader.View() + " loading")
	}
	return helpStyle.Render(helpText)
}

func renderStats(rows []models.SolverStats, short bool) string {
	var b strings.Builder
	for _, r := range rows {
		name := truncate(r.Solver.Name, 20)
		config := truncate(r.Config.Name, 20)
		if short {
			fmt.Fprintf(&b, "%-20s %-20s %6d %10.2fs\n", name, config, r.Solved, r.Time)
			continue
		}
		fmt.Fprintf(&b, "%-20s %-20s %6d/%-6d %5d inc %5d wrong %5d fail %10.2fs\n",
			name, config, r.Solved, r.Completed, r.Incomplete, r.Wrong, r.Failed, r.Time)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
