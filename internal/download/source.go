package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHubEndpoint is the public model hub used when none is configured.
const DefaultHubEndpoint = "https://huggingface.co"

// RemoteFile is one entry of a repository file tree.
type RemoteFile struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// IsDir reports whether the entry is a directory.
func (f RemoteFile) IsDir() bool { return f.Type == "directory" }

// Source resolves repository metadata and file contents.
type Source interface {
	// ListFiles returns the full (recursive) file tree of a repository.
	// A missing repository yields a *NotFoundError.
	ListFiles(ctx context.Context, repoID, revision string) ([]RemoteFile, error)
	// Open streams a file starting at offset. resumed is false when the
	// server ignored the range and the body starts at byte zero.
	Open(ctx context.Context, repoID, revision, path string, offset int64) (body io.ReadCloser, resumed bool, err error)
}

// HubSource talks to a Hugging Face compatible hub over HTTP.
type HubSource struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewHubSource builds a hub client. An empty endpoint selects DefaultHubEndpoint;
// a nil client gets one without an overall timeout (large files stream for a long time).
func NewHubSource(endpoint, token string, client *http.Client) *HubSource {
	if endpoint == "" {
		endpoint = DefaultHubEndpoint
	}
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}}
	}
	return &HubSource{endpoint: strings.TrimRight(endpoint, "/"), token: token, httpClient: client}
}

func (h *HubSource) ListFiles(ctx context.Context, repoID, revision string) ([]RemoteFile, error) {
	if revision == "" {
		revision = "main"
	}
	u := fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true", h.endpoint, repoID, url.PathEscape(revision))
	resp, err := h.do(ctx, u, nil)
	if err != nil {
		return nil, &TransferError{Op: "list", ModelID: repoID, Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized:
		// The hub answers 401 for repos that do not exist when unauthenticated.
		return nil, &NotFoundError{ModelID: repoID, Hint: notFoundHint(repoID), Err: fmt.Errorf("hub responded %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransferError{Op: "list", ModelID: repoID, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	var files []RemoteFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, &TransferError{Op: "list", ModelID: repoID, Err: fmt.Errorf("decode tree: %w", err)}
	}
	return files, nil
}

func (h *HubSource) Open(ctx context.Context, repoID, revision, path string, offset int64) (io.ReadCloser, bool, error) {
	if revision == "" {
		revision = "main"
	}
	u := fmt.Sprintf("%s/%s/resolve/%s/%s", h.endpoint, repoID, url.PathEscape(revision), path)
	headers := map[string]string{}
	if offset > 0 {
		headers["Range"] = fmt.Sprintf("bytes=%d-", offset)
	}
	resp, err := h.do(ctx, u, headers)
	if err != nil {
		return nil, false, &TransferError{Op: "fetch", ModelID: repoID, Err: err}
	}
	// resp.Body MUST be closed by the caller on success
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, false, nil
	case http.StatusPartialContent:
		return resp.Body, offset > 0, nil
	case http.StatusNotFound, http.StatusUnauthorized:
		resp.Body.Close()
		return nil, false, &NotFoundError{ModelID: repoID, Hint: notFoundHint(repoID), Err: fmt.Errorf("file %s: hub responded %d", path, resp.StatusCode)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, false, &TransferError{Op: "fetch", ModelID: repoID, StatusCode: resp.StatusCode, Err: fmt.Errorf("file %s: %s", path, strings.TrimSpace(string(body)))}
	}
}

func (h *HubSource) do(ctx context.Context, u string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.httpClient.Do(req)
}
