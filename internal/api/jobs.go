package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/models"
)

// Sort columns of the pairs table, in server order.
const (
	SortBenchmark = iota
	SortSolver
	SortConfig
	SortStatus
	SortTime
	SortResult
	SortSpace
)

// Paging describes one draw of a server-side table.
type Paging struct {
	Start  int    // index of the first row
	Length int    // rows per page
	Echo   int    // draw counter, returned unchanged by the server
	Search string // free-text filter
}

func (p Paging) validate(maxLength int) error {
	if p.Start < 0 {
		return fmt.Errorf("page start must not be negative, got %d", p.Start)
	}
	if p.Length < constants.MinPageSize || p.Length > maxLength {
		return fmt.Errorf("page length must be between %d and %d, got %d", constants.MinPageSize, maxLength, p.Length)
	}
	if p.Echo < 0 {
		return fmt.Errorf("echo must not be negative, got %d", p.Echo)
	}
	return nil
}

func (p Paging) form() url.Values {
	return url.Values{
		"iDisplayStart":  {strconv.Itoa(p.Start)},
		"iDisplayLength": {strconv.Itoa(p.Length)},
		"sEcho":          {strconv.Itoa(p.Echo)},
		"sSearch":        {p.Search},
	}
}

// StatsQuery selects which solver statistics to fetch.
type StatsQuery struct {
	Paging
	Short     bool // four-column panel form
	Wallclock bool // wallclock instead of CPU time
	Stage     int
}

// PairQuery selects one page of job pairs.
type PairQuery struct {
	Paging
	SortBy      int // one of the Sort* columns
	Descending  bool
	Wallclock   bool
	SyncResults bool // only pairs whose benchmark finished for every configuration
	Stage       int
}

func (q PairQuery) validate() error {
	if err := q.Paging.validate(constants.MaxPageSize); err != nil {
		return err
	}
	if q.SortBy < 0 || q.SortBy > constants.MaxPairSortColumn {
		return fmt.Errorf("sort column must be between 0 and %d, got %d", constants.MaxPairSortColumn, q.SortBy)
	}
	return nil
}

// ListJobSpaces returns the children of parentID in job's space tree.
// A parentID of zero lists the root job space.
func (c *Client) ListJobSpaces(ctx context.Context, jobID, parentID int) ([]models.JobSpace, error) {
	var form url.Values
	if parentID > 0 {
		form = url.Values{"id": {strconv.Itoa(parentID)}}
	}
	resp, err := c.doRequest(ctx, nethttp.MethodGet, fmt.Sprintf("/services/space/%d/jobspaces/false", jobID), form)
	if err != nil {
		return nil, err
	}

	var spaces []models.JobSpace
	if err := decodeResponse(resp, "list job spaces", &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// GetSolverStats returns a page of solver statistics for a job space.
func (c *Client) GetSolverStats(ctx context.Context, jobID, spaceID int, q StatsQuery) (*models.StatsPage, error) {
	if err := q.Paging.validate(constants.PanelPageSize); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/services/jobs/%d/solvers/pagination/%d/%t/%t/%d", jobID, spaceID, q.Short, q.Wallclock, q.Stage)
	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, q.form())
	if err != nil {
		return nil, err
	}

	var raw models.DataTablePage
	if err := decodeResponse(resp, "get solver stats", &raw); err != nil {
		return nil, err
	}
	page, err := decodePage(raw, decodeStatsRow)
	if err != nil {
		return nil, fmt.Errorf("get solver stats: %w", err)
	}
	return &page, nil
}

// GetPairs returns a page of job pairs for a job space. It fails with
// ErrTooManyPairs when the space is too large for the server to page.
func (c *Client) GetPairs(ctx context.Context, jobID, spaceID int, q PairQuery) (*models.PairPage, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	form := q.form()
	form.Set("iSortCol_0", strconv.Itoa(q.SortBy))
	dir := "asc"
	if q.Descending {
		dir = "desc"
	}
	form.Set("sSortDir_0", dir)

	path := fmt.Sprintf("/services/jobs/%d/pairs/pagination/%d/%t/%t/%d", jobID, spaceID, q.Wallclock, q.SyncResults, q.Stage)
	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, form)
	if err != nil {
		return nil, err
	}

	var raw models.DataTablePage
	if err := decodeResponse(resp, "get job pairs", &raw); err != nil {
		if code, ok := ServerCode(err); ok && code == codeTooManyPairs {
			return nil, fmt.Errorf("%w: %w", ErrTooManyPairs, err)
		}
		return nil, err
	}
	page, err := decodePage(raw, decodePairRow)
	if err != nil {
		return nil, fmt.Errorf("get job pairs: %w", err)
	}
	return &page, nil
}

// GetSpaceOverviewGraph renders the overview chart for the selected
// configurations and returns the image URL.
func (c *Client) GetSpaceOverviewGraph(ctx context.Context, jobID, spaceID, stage int, logY bool, configIDs []int) (string, error) {
	if len(configIDs) == 0 {
		return "", errors.New("at least one configuration must be selected")
	}
	if len(configIDs) > constants.MaxOverviewSelections {
		return "", fmt.Errorf("at most %d configurations can be graphed, got %d", constants.MaxOverviewSelections, len(configIDs))
	}
	form := url.Values{"logY": {strconv.FormatBool(logY)}}
	for _, id := range configIDs {
		form.Add("selectedIds[]", strconv.Itoa(id))
	}

	path := fmt.Sprintf("/services/jobs/%d/%d/graphs/spaceOverview/%d", jobID, spaceID, stage)
	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, form)
	if err != nil {
		return "", err
	}
	body, err := readText(resp, "get space overview graph")
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(body, `"`) {
		var s string
		if err := json.Unmarshal([]byte(body), &s); err == nil {
			body = s
		}
	}
	return body, nil
}

// LargeGraphURL returns the URL of the enlarged rendering of a graph.
func LargeGraphURL(src string) string {
	return src + constants.LargeGraphSuffix
}

// GetSolverComparisonGraph renders the scatter plot comparing two configurations.
func (c *Client) GetSolverComparisonGraph(ctx context.Context, jobID, spaceID, config1, config2 int, big bool, stage int) (*models.Graph, error) {
	path := fmt.Sprintf("/services/jobs/%d/%d/graphs/solverComparison/%d/%d/%t/%d", jobID, spaceID, config1, config2, big, stage)
	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, url.Values{})
	if err != nil {
		return nil, err
	}
	var g models.Graph
	if err := decodeResponse(resp, "get solver comparison graph", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func readText(resp *nethttp.Response, what string) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: failed to read response: %w", what, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Op: what, StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	if err := checkEnvelope(what, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
