// Package github reads repository snapshots through the GitHub REST API and
// raw.githubusercontent.com.
//
// Only the calls needed to import a DraCor corpus repository are covered:
// resolve a commit, walk its tree one folder deep, and fetch blobs or raw
// files. Rate limit headers are observed and logged; no backoff is applied.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stabledracor/internal/logging"
	"stabledracor/internal/services"
)

const (
	DefaultAPIURL = "https://api.github.com/"
	DefaultRawURL = "https://raw.githubusercontent.com/"
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the GitHub API.
type Client struct {
	apiURL string
	rawURL string
	token  string
	client HTTPDoer
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithAPIURL(u string) Option { return func(c *Client) { c.apiURL = withSlash(u, DefaultAPIURL) } }

func WithRawURL(u string) Option { return func(c *Client) { c.rawURL = withSlash(u, DefaultRawURL) } }

// WithToken sends a bearer token for a higher rate limit.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(logger, "github") }
}

// New returns a client with the public GitHub endpoints.
func New(opts ...Option) *Client {
	c := &Client{
		apiURL: DefaultAPIURL,
		rawURL: DefaultRawURL,
		client: http.DefaultClient,
		logger: logging.NewComponentLogger(nil, "github"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repository identifies a repository.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// WebURL is the browsable URL of the repository.
func (r Repository) WebURL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

func (r Repository) apiPath() string {
	return "repos/" + url.PathEscape(r.Owner) + "/" + url.PathEscape(r.Name)
}

// TreeEntry is one element of a git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	URL  string `json:"url"`
}

// Tree is a git tree object.
type Tree struct {
	SHA       string      `json:"sha"`
	URL       string      `json:"url"`
	Truncated bool        `json:"truncated"`
	Entries   []TreeEntry `json:"tree"`
}

// Find returns the entry with the given path.
func (t Tree) Find(path string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Commit is the subset of a commit payload used to reach its tree.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Tree struct {
			SHA string `json:"sha"`
			URL string `json:"url"`
		} `json:"tree"`
	} `json:"commit"`
}

// LatestCommit returns the SHA of the first commit listed for the default branch.
func (c *Client) LatestCommit(ctx context.Context, repo Repository) (string, error) {
	var commits []struct {
		SHA string `json:"sha"`
	}
	if err := c.getJSON(ctx, c.apiURL+repo.apiPath()+"/commits", &commits); err != nil {
		return "", err
	}
	if len(commits) == 0 || commits[0].SHA == "" {
		return "", services.Wrap(services.ErrNotFound, "github", "latest commit", repo.String()+" has no commits", nil)
	}
	return commits[0].SHA, nil
}

// Commit resolves a commit reference.
func (c *Client) Commit(ctx context.Context, repo Repository, ref string) (Commit, error) {
	var commit Commit
	err := c.getJSON(ctx, c.apiURL+repo.apiPath()+"/commits/"+url.PathEscape(ref), &commit)
	return commit, err
}

// RootTree returns the top level tree of a commit.
func (c *Client) RootTree(ctx context.Context, repo Repository, ref string) (Tree, error) {
	commit, err := c.Commit(ctx, repo, ref)
	if err != nil {
		return Tree{}, err
	}
	return c.TreeAt(ctx, commit.Commit.Tree.URL)
}

// TreeAt fetches a tree by its API URL.
func (c *Client) TreeAt(ctx context.Context, treeURL string) (Tree, error) {
	var tree Tree
	if err := c.getJSON(ctx, treeURL, &tree); err != nil {
		return Tree{}, err
	}
	if tree.Truncated {
		logging.WarnWithContext(c.logger, "github tree listing truncated", "github_tree_truncated",
			logging.String("url", treeURL),
			logging.String(logging.FieldImpact, "some files of the folder are not imported"),
		)
	}
	return tree, nil
}

// ListFiles returns the blob names inside folder at commit ref. Nested
// folders are not supported.
func (c *Client) ListFiles(ctx context.Context, repo Repository, ref, folder string) ([]string, error) {
	root, err := c.RootTree(ctx, repo, ref)
	if err != nil {
		return nil, err
	}
	entry, ok := root.Find(folder)
	if !ok || entry.Type != "tree" {
		return nil, services.Wrap(services.ErrNotFound, "github", "list files", fmt.Sprintf("folder %q not in %s@%s", folder, repo, ref), nil)
	}
	tree, err := c.TreeAt(ctx, entry.URL)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range tree.Entries {
		if e.Type == "blob" {
			names = append(names, e.Path)
		}
	}
	return names, nil
}

// Blob fetches and base64-decodes a blob by its API URL.
func (c *Client) Blob(ctx context.Context, blobURL string) ([]byte, error) {
	var blob struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.getJSON(ctx, blobURL, &blob); err != nil {
		return nil, err
	}
	if blob.Encoding != "" && blob.Encoding != "base64" {
		return nil, fmt.Errorf("blob %s: unsupported encoding %q", blobURL, blob.Encoding)
	}
	// GitHub wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", blobURL, err)
	}
	return data, nil
}

// RootFile fetches a file from the top level tree of a commit through the blob API.
func (c *Client) RootFile(ctx context.Context, repo Repository, ref, name string) ([]byte, error) {
	root, err := c.RootTree(ctx, repo, ref)
	if err != nil {
		return nil, err
	}
	entry, ok := root.Find(name)
	if !ok || entry.Type != "blob" {
		return nil, services.Wrap(services.ErrNotFound, "github", "root file", fmt.Sprintf("%s not in %s@%s", name, repo, ref), nil)
	}
	return c.Blob(ctx, entry.URL)
}

// RawURL is the raw download URL of path at ref.
func (c *Client) RawURL(repo Repository, ref, path string) string {
	return c.rawURL + repo.Owner + "/" + repo.Name + "/" + ref + "/" + strings.TrimPrefix(path, "/")
}

// RawFile downloads path at ref from the raw host.
func (c *Client) RawFile(ctx context.Context, repo Repository, ref, path string) ([]byte, error) {
	resp, err := c.get(ctx, c.RawURL(repo, ref, path), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	resp, err := c.get(ctx, target, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string, api bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build github request: %w", err)
	}
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github GET %s: %w", target, err)
	}
	if api {
		c.observeRateLimit(resp.Header)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "github", "GET "+target, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return resp, nil
}

func (c *Client) observeRateLimit(h http.Header) {
	raw := h.Get("X-RateLimit-Remaining")
	if raw == "" {
		return
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	switch {
	case remaining > 1 && remaining < 5:
		logging.WarnWithContext(c.logger, "approaching github rate limit", "github_rate_limit",
			logging.Int("remaining", remaining),
			logging.String(logging.FieldImpact, "further imports may fail until the limit resets"),
		)
	case remaining <= 1:
		hint := "wait for the rate limit window to reset"
		if c.token == "" {
			hint = "set GITHUB_TOKEN for a higher rate limit"
		}
		logging.WarnWithContext(c.logger, "github rate limit reached", "github_rate_limit",
			logging.String("limit", h.Get("X-RateLimit-Limit")),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "requests fail until the limit resets"),
		)
	}
}

func withSlash(u, fallback string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return fallback
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
