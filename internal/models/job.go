// Package models defines the data structures exchanged with the job server.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// JobSpace is one node of a job's space hierarchy. Job spaces mirror the
// space tree the job was created from and group its job pairs.
type JobSpace struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	MaxStages   int    `json:"maxStages" yaml:"max_stages"`
	HasChildren bool   `json:"hasChildren" yaml:"has_children"`
}

// jstreeNode is the shape the server uses when it renders the space tree
// for a tree widget: attributes are strings nested under "attr".
type jstreeNode struct {
	Data  json.RawMessage `json:"data"`
	State string          `json:"state"`
	Attr  struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		MaxStages string `json:"maxStages"`
	} `json:"attr"`
}

// UnmarshalJSON accepts both the flat form and the tree-widget form.
func (s *JobSpace) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, ok := probe["attr"]; ok {
		var node jstreeNode
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		id, err := strconv.Atoi(node.Attr.ID)
		if err != nil {
			return fmt.Errorf("job space id %q: %w", node.Attr.ID, err)
		}
		s.ID = id
		s.Name = node.Attr.Name
		if s.Name == "" {
			_ = json.Unmarshal(node.Data, &s.Name)
		}
		s.MaxStages, _ = strconv.Atoi(node.Attr.MaxStages)
		s.HasChildren = node.State == "closed" || node.State == "open"
		return nil
	}

	type plain JobSpace
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = JobSpace(p)
	return nil
}

// Link is a named primitive (solver, configuration, benchmark) referenced from a table row.
type Link struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SolverStats summarizes one solver/configuration pair within a job space.
type SolverStats struct {
	Solver     Link    `json:"solver" yaml:"solver"`
	Config     Link    `json:"config" yaml:"config"`
	Solved     int     `json:"solved" yaml:"solved"`
	Completed  int     `json:"completed" yaml:"completed"`
	Incomplete int     `json:"incomplete" yaml:"incomplete"`
	Wrong      int     `json:"wrong" yaml:"wrong"`
	Failed     int     `json:"failed" yaml:"failed"`
	Time       float64 `json:"time" yaml:"time"` // seconds, wallclock or CPU depending on the query
}

// JobPair is one solver configuration run on one benchmark.
type JobPair struct {
	ID                int           `json:"id" yaml:"id"`
	Benchmark         Link          `json:"benchmark" yaml:"benchmark"`
	Solver            Link          `json:"solver" yaml:"solver"`
	Config            Link          `json:"config" yaml:"config"`
	Status            string        `json:"status" yaml:"status"`
	StatusDescription string        `json:"statusDescription,omitempty" yaml:"status_description,omitempty"`
	Time              time.Duration `json:"time" yaml:"time"`
	Result            string        `json:"result" yaml:"result"`
	Space             string        `json:"space" yaml:"space"`
}

// Page is one server-side page of a table.
// Echo is the draw counter sent with the request and returned unchanged.
type Page[T any] struct {
	Echo          int `json:"echo" yaml:"echo"`
	TotalRecords  int `json:"totalRecords" yaml:"total_records"`
	TotalFiltered int `json:"totalFiltered" yaml:"total_filtered"`
	Rows          []T `json:"rows" yaml:"rows"`
}

// StatsPage is a page of solver statistics.
type StatsPage = Page[SolverStats]

// PairPage is a page of job pairs.
type PairPage = Page[JobPair]

// DataTablePage is the raw paging envelope returned by pagination endpoints.
// Cells are HTML fragments.
type DataTablePage struct {
	Echo          int        `json:"sEcho"`
	TotalRecords  int        `json:"iTotalRecords"`
	TotalFiltered int        `json:"iTotalDisplayRecords"`
	Rows          [][]string `json:"aaData"`
}

// Graph is a rendered chart plus its HTML image map.
type Graph struct {
	Src string `json:"src" yaml:"src"`
	Map string `json:"map,omitempty" yaml:"map,omitempty"`
}

// ActionResponse is the envelope returned by mutating endpoints and by data
// endpoints when they refuse a request.
type ActionResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DownloadKind selects what a job download contains.
type DownloadKind string

const (
	DownloadJob       DownloadKind = "job"       // CSV of pair results
	DownloadJobXML    DownloadKind = "jobXML"    // job description that can be re-imported
	DownloadJobOutput DownloadKind = "j_outputs" // solver output of every pair
)

// ParseDownloadKind maps the CLI spelling to a DownloadKind.
func ParseDownloadKind(s string) (DownloadKind, error) {
	switch s {
	case "csv", "job", "":
		return DownloadJob, nil
	case "xml", "jobXML":
		return DownloadJobXML, nil
	case "output", "outputs", "j_outputs":
		return DownloadJobOutput, nil
	default:
		return "", fmt.Errorf("unknown download kind %q (want csv, xml or output)", s)
	}
}

// Extension is the file extension used for downloaded archives of this kind.
func (k DownloadKind) Extension() string {
	if k == DownloadJob {
		return ".csv"
	}
	return ".zip"
}
