package api

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/starexec/jobview/internal/validation"
)

// action sends a mutating request. A models.ActionResponse with success=false
// comes back as a ServerError.
func (c *Client) action(ctx context.Context, method, path, what string, form url.Values) error {
	if form == nil && method != nethttp.MethodGet {
		form = url.Values{}
	}
	resp, err := c.doRequest(ctx, method, path, form)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, what, nil); err != nil {
		return err
	}
	c.logger.Info().Str("action", what).Msg("done")
	return nil
}

// PauseJob stops the job's pending pairs from being scheduled.
func (c *Client) PauseJob(ctx context.Context, jobID int) error {
	return c.action(ctx, nethttp.MethodPost, fmt.Sprintf("/services/pause/job/%d", jobID), "pause job", nil)
}

// ResumeJob resumes a paused job.
func (c *Client) ResumeJob(ctx context.Context, jobID int) error {
	return c.action(ctx, nethttp.MethodPost, fmt.Sprintf("/services/resume/job/%d", jobID), "resume job", nil)
}

// DeleteJob deletes the given jobs.
func (c *Client) DeleteJob(ctx context.Context, jobIDs ...int) error {
	if len(jobIDs) == 0 {
		return fmt.Errorf("no job selected")
	}
	form := url.Values{}
	for _, id := range jobIDs {
		form.Add("selectedIds[]", strconv.Itoa(id))
	}
	return c.action(ctx, nethttp.MethodPost, "/services/delete/job", "delete job", form)
}

// RenameJob changes a job's name. The name is checked locally first.
func (c *Client) RenameJob(ctx context.Context, jobID int, name string) error {
	if err := validation.ValidateJobName(name); err != nil {
		return err
	}
	path := fmt.Sprintf("/services/job/edit/name/%d/%s", jobID, url.PathEscape(name))
	return c.action(ctx, nethttp.MethodPost, path, "rename job", nil)
}

// ChangeQueue moves the job's pending pairs to another worker queue.
func (c *Client) ChangeQueue(ctx context.Context, jobID, queueID int) error {
	if err := validation.ValidateQueue(queueID); err != nil {
		return err
	}
	return c.action(ctx, nethttp.MethodPost, fmt.Sprintf("/services/changeQueue/job/%d/%d", jobID, queueID), "change queue", nil)
}

// PostProcess re-runs a post-processor over every pair of a stage.
func (c *Client) PostProcess(ctx context.Context, jobID, processorID, stage int) error {
	if processorID <= 0 {
		return fmt.Errorf("a post-processor must be selected")
	}
	path := fmt.Sprintf("/services/postprocess/job/%d/%d/%d", jobID, processorID, stage)
	return c.action(ctx, nethttp.MethodPost, path, "post-process job", nil)
}

// ClearStatsCache drops the server's cached solver statistics for the job.
func (c *Client) ClearStatsCache(ctx context.Context, jobID int) error {
	return c.action(ctx, nethttp.MethodPost, fmt.Sprintf("/services/cache/clear/stats/%d/", jobID), "clear stats cache", nil)
}

// RecompileSpaces rebuilds the job space tree of a job.
func (c *Client) RecompileSpaces(ctx context.Context, jobID int) error {
	return c.action(ctx, nethttp.MethodGet, fmt.Sprintf("/services/recompile/%d", jobID), "recompile job spaces", nil)
}
