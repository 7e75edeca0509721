package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starexec/jobview/internal/models"
)

// cell is what the table decoders need from one HTML fragment cell.
type cell struct {
	Text   string            // visible text, whitespace collapsed
	Href   string            // href of the first link
	Title  string            // title of the first link
	Anchor string            // id attribute of the first link
	Inputs map[string]string // hidden input values keyed by name (or prim)
}

// linkID extracts the id query parameter of the cell's link, falling back to
// the anchor's own id attribute.
func (c cell) linkID() int {
	if c.Href != "" {
		if u, err := url.Parse(c.Href); err == nil {
			if id, err := strconv.Atoi(u.Query().Get("id")); err == nil {
				return id
			}
		}
	}
	id, _ := strconv.Atoi(c.Anchor)
	return id
}

func (c cell) link() models.Link {
	return models.Link{ID: c.linkID(), Name: c.Text, Description: c.Title}
}

var fragmentContext = &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}

// parseCell parses a table cell. Plain text cells come back with only Text set.
func parseCell(s string) (cell, error) {
	c := cell{Inputs: map[string]string{}}
	if !strings.Contains(s, "<") {
		c.Text = strings.Join(strings.Fields(html.UnescapeString(s)), " ")
		return c, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(s), fragmentContext)
	if err != nil {
		return c, fmt.Errorf("parse cell: %w", err)
	}

	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		case html.ElementNode:
			switch n.DataAtom {
			case atom.A:
				if c.Href == "" {
					c.Href = attr(n, "href")
					c.Title = attr(n, "title")
					c.Anchor = attr(n, "id")
				}
			case atom.Input:
				key := attr(n, "name")
				if key == "" {
					key = attr(n, "prim")
				}
				if key != "" {
					c.Inputs[key] = attr(n, "value")
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	c.Text = strings.Join(strings.Fields(text.String()), " ")
	return c, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseCells(row []string) ([]cell, error) {
	cells := make([]cell, len(row))
	for i, raw := range row {
		c, err := parseCell(raw)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cells[i] = c
	}
	return cells, nil
}

// leadingNumber parses the number at the start of s ("12.5 s", "340 ms").
func leadingNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || s[end] == '-' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no number in %q", s)
	}
	return strconv.ParseFloat(s[:end], 64)
}

func leadingInt(s string) (int, error) {
	f, err := leadingNumber(s)
	return int(f), err
}

// fraction parses "a/b"; a bare number is returned as (a, 0).
func fraction(s string) (int, int, error) {
	num, den, found := strings.Cut(s, "/")
	a, err := leadingInt(num)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return a, 0, nil
	}
	b, err := leadingInt(den)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Pair rows have seven columns: benchmark, solver, configuration, status,
// time, result and space.
const pairColumns = 7

func decodePairRow(row []string) (models.JobPair, error) {
	if len(row) < pairColumns {
		return models.JobPair{}, fmt.Errorf("pair row has %d columns, want %d", len(row), pairColumns)
	}
	cells, err := parseCells(row)
	if err != nil {
		return models.JobPair{}, err
	}

	p := models.JobPair{
		Benchmark:         cells[0].link(),
		Solver:            cells[1].link(),
		Config:            cells[2].link(),
		Status:            cells[3].Text,
		StatusDescription: cells[3].Title,
		Result:            cells[5].Text,
		Space:             cells[6].Text,
	}
	if v, ok := cells[0].Inputs["pid"]; ok {
		p.ID, _ = strconv.Atoi(v)
	}
	if ms, err := leadingNumber(cells[4].Text); err == nil {
		p.Time = time.Duration(ms * float64(time.Millisecond))
	}
	return p, nil
}

// Stats rows come in two widths. The full table has solver, configuration,
// solved/completed, incomplete, wrong, failed and time; the short form used
// by subspace panels has solver, configuration, solved and time.
const (
	statsColumnsFull  = 7
	statsColumnsShort = 4
)

func decodeStatsRow(row []string) (models.SolverStats, error) {
	if len(row) != statsColumnsFull && len(row) != statsColumnsShort {
		return models.SolverStats{}, fmt.Errorf("stats row has %d columns, want %d or %d", len(row), statsColumnsShort, statsColumnsFull)
	}
	cells, err := parseCells(row)
	if err != nil {
		return models.SolverStats{}, err
	}

	s := models.SolverStats{
		Solver: cells[0].link(),
		Config: cells[1].link(),
	}
	if s.Solved, s.Completed, err = fraction(cells[2].Text); err != nil {
		return s, fmt.Errorf("solved column: %w", err)
	}
	last := cells[len(cells)-1].Text
	if s.Time, err = leadingNumber(last); err != nil {
		return s, fmt.Errorf("time column: %w", err)
	}
	if len(cells) == statsColumnsFull {
		s.Incomplete, _ = leadingInt(cells[3].Text)
		s.Wrong, _ = leadingInt(cells[4].Text)
		s.Failed, _ = leadingInt(cells[5].Text)
	}
	return s, nil
}

// decodePage converts a raw paging envelope into typed rows.
func decodePage[T any](raw models.DataTablePage, decode func([]string) (T, error)) (models.Page[T], error) {
	page := models.Page[T]{
		Echo:          raw.Echo,
		TotalRecords:  raw.TotalRecords,
		TotalFiltered: raw.TotalFiltered,
		Rows:          make([]T, 0, len(raw.Rows)),
	}
	for i, row := range raw.Rows {
		v, err := decode(row)
		if err != nil {
			return page, fmt.Errorf("row %d: %w", i, err)
		}
		page.Rows = append(page.Rows, v)
	}
	return page, nil
}
