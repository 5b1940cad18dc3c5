package github

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/utils"
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Branch is a branch head as reported by the API
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ListBranches returns every branch of a repository, following Link pagination
func (c *Client) ListBranches(ctx context.Context, repo string) ([]Branch, error) {
	if err := ValidateRepository(repo); err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}

	var all []Branch
	next := fmt.Sprintf("/repos/%s/branches", repo)
	query := map[string]string{"per_page": strconv.Itoa(utils.BranchPageSize)}

	for page := 1; next != ""; page++ {
		var batch []Branch
		r := c.newRequest(ctx).SetSuccessResult(&batch)
		if query != nil {
			r.SetQueryParams(query)
		}
		resp, err := r.Get(next)
		if classified := classifyResponse(resp, err, "list branches of "+repo); classified != nil {
			return nil, classified
		}
		all = append(all, batch...)
		c.logger.Debug("Fetched branch page",
			logging.F("repository", repo),
			logging.F("page", page),
			logging.F("count", len(batch)))

		next = nextLink(resp.Header.Get("Link"))
		// the next link already carries its query
		query = nil
	}
	return all, nil
}

// GetBranch returns the head commit of one branch
func (c *Client) GetBranch(ctx context.Context, repo, branch string) (*Branch, error) {
	if err := ValidateRepository(repo); err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}

	var out Branch
	resp, err := c.newRequest(ctx).
		SetSuccessResult(&out).
		Get(fmt.Sprintf("/repos/%s/branches/%s", repo, escapeRef(branch)))
	if classified := classifyResponse(resp, err, fmt.Sprintf("branch %q of %s", branch, repo)); classified != nil {
		return nil, classified
	}
	return &out, nil
}

func nextLink(header string) string {
	if header == "" {
		return ""
	}
	m := nextLinkPattern.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return m[1]
}
