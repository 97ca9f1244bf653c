// Package pncrest is a minimal client for the PNC REST API (v2).
package pncrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is the page size used for collection endpoints.
const DefaultPageSize = 200

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Config holds PNC connection settings.
type Config struct {
	// URL is the REST root, e.g. https://pnc.example.com/pnc-rest/v2.
	URL      string
	Token    string
	PageSize int
	Timeout  time.Duration
}

// Client is a PNC REST API client.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	hc       *http.Client
	logger   *slog.Logger
}

// NewClient creates a new PNC client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return NewClientWithHTTP(cfg, &http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP creates a PNC client that sends requests through hc.
func NewClientWithHTTP(cfg *Config, hc *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		pageSize: pageSize,
		hc:       hc,
		logger:   logger,
	}
}

// GetMilestone fetches a product milestone.
func (c *Client) GetMilestone(ctx context.Context, id string) (*ProductMilestone, error) {
	var m ProductMilestone
	if err := c.getJSON(ctx, "/product-milestones/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMilestoneBuilds fetches every build of a milestone matching the RSQL
// query q.
func (c *Client) ListMilestoneBuilds(ctx context.Context, milestoneID, q string) ([]Build, error) {
	query := url.Values{}
	if q != "" {
		query.Set("q", q)
	}
	return listAll[Build](ctx, c, "/product-milestones/"+url.PathEscape(milestoneID)+"/builds", query)
}

// ListBuiltArtifacts fetches the artifacts a build produced.
func (c *Client) ListBuiltArtifacts(ctx context.Context, buildID string) ([]Artifact, error) {
	return listAll[Artifact](ctx, c, "/builds/"+url.PathEscape(buildID)+"/artifacts/built", nil)
}

// ListDependencyArtifacts fetches the artifacts a build depended on.
func (c *Client) ListDependencyArtifacts(ctx context.Context, buildID string) ([]Artifact, error) {
	return listAll[Artifact](ctx, c, "/builds/"+url.PathEscape(buildID)+"/artifacts/dependencies", nil)
}

// GetBuildLog opens the build log. It returns nil, nil when PNC has no log
// for the build. The caller closes the returned reader.
func (c *Client) GetBuildLog(ctx context.Context, buildID string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, "/builds/"+url.PathEscape(buildID)+"/logs/build", nil, "text/plain")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetInternalSCMArchive requests the internal SCM archive of a build. The
// raw response is returned whatever its status; the caller closes the body.
func (c *Client) GetInternalSCMArchive(ctx context.Context, buildID string) (*http.Response, error) {
	return c.do(ctx, "/builds/"+url.PathEscape(buildID)+"/internal-scm-archive", nil, "*/*")
}

// listAll walks every page of a collection endpoint.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("pageSize", strconv.Itoa(c.pageSize))

	var items []T
	for index := 0; ; index++ {
		query.Set("pageIndex", strconv.Itoa(index))
		var page Page[T]
		if err := c.getJSON(ctx, path, query, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Content...)
		if index+1 >= page.TotalPages || len(page.Content) == 0 {
			break
		}
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, path, query, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values, accept string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	c.logger.Debug("pnc request completed", "path", path, "status", resp.StatusCode)
	return resp, nil
}

// checkStatus turns a non-2xx response into a *RemoteError and closes it.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
