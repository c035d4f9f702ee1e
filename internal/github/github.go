package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/dshills/prsignal/internal/model"
)

// Errors returned by the client.
var (
	ErrNoToken = errors.New("GitHub token is not set (GITHUB_TOKEN or PRSIGNAL_GITHUB_TOKEN)")
	ErrAuth    = errors.New("GitHub authentication failed")
	ErrBadRef  = errors.New("invalid pull request reference")
)

// Client provides access to the GitHub REST API.
type Client struct {
	gh         *github.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	maxWait    time.Duration
}

// NewClient creates a client authenticated with token. apiURL selects a
// GitHub Enterprise server; empty means github.com.
func NewClient(ctx context.Context, token, apiURL string, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))
	if apiURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("github api url: %w", err)
		}
	}
	return newClient(gh, logger), nil
}

// NewClientWithHTTP creates a client using httpClient against baseURL.
// An empty baseURL keeps the public API endpoint.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, logger *slog.Logger) (*Client, error) {
	gh := github.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		gh.BaseURL = u
	}
	return newClient(gh, logger), nil
}

func newClient(gh *github.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{gh: gh, logger: logger, maxRetries: defaultMaxRetries, backoff: defaultBackoff, maxWait: defaultMaxWait}
}

// SetRetry overrides how often and how patiently failed requests are
// repeated. A zero maxRetries disables retries. maxWait caps how long a
// rate limit is waited out; a later reset fails the call.
func (c *Client) SetRetry(maxRetries int, backoff, maxWait time.Duration) {
	c.maxRetries = max(maxRetries, 0)
	c.backoff = backoff
	c.maxWait = maxWait
}

// Host returns the API host the client talks to.
func (c *Client) Host() string {
	return c.gh.BaseURL.Host
}

// PRInfo is the pull request metadata prsignal reports.
type PRInfo struct {
	Number  int
	Title   string
	HeadSHA string
	HeadRef string
	BaseRef string
}

// GetPR fetches the pull request metadata.
func (c *Client) GetPR(ctx context.Context, owner, repo string, number int) (PRInfo, error) {
	var pr *github.PullRequest
	err := c.withRetry(ctx, "get PR", func() error {
		var err error
		pr, _, err = c.gh.PullRequests.Get(ctx, owner, repo, number)
		return err
	})
	if err != nil {
		return PRInfo{}, wrap("get PR", err)
	}
	return PRInfo{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		HeadSHA: pr.GetHead().GetSHA(),
		HeadRef: pr.GetHead().GetRef(),
		BaseRef: pr.GetBase().GetRef(),
	}, nil
}

// GetPRDiff fetches the raw diff for a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	var diff string
	err := c.withRetry(ctx, "get PR diff", func() error {
		var err error
		diff, _, err = c.gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
		return err
	})
	if err != nil {
		return "", wrap("get PR diff", err)
	}
	return diff, nil
}

// GetPRFiles fetches every file changed in a pull request, following
// pagination.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, number int) ([]model.ChangedFile, error) {
	opts := &github.ListOptions{PerPage: 100}
	var files []model.ChangedFile

	for {
		var (
			page []*github.CommitFile
			resp *github.Response
		)
		err := c.withRetry(ctx, "list PR files", func() error {
			var err error
			page, resp, err = c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
			return err
		})
		if err != nil {
			return nil, wrap("list PR files", err)
		}
		for _, f := range page {
			files = append(files, model.ChangedFile{
				Filename:  f.GetFilename(),
				Status:    fileStatus(f.GetStatus()),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		c.logger.Debug("listed PR files", "page", opts.Page, "count", len(page))

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func fileStatus(s string) model.FileStatus {
	switch s {
	case "added", "copied":
		return model.StatusAdded
	case "removed":
		return model.StatusRemoved
	case "renamed":
		return model.StatusRenamed
	default:
		return model.StatusModified
	}
}

// UpsertComment edits the first PR comment containing marker, or creates a
// new comment when there is none. It returns the comment URL and whether a
// new comment was created.
func (c *Client) UpsertComment(ctx context.Context, owner, repo string, number int, marker, body string) (string, bool, error) {
	if !strings.Contains(body, marker) {
		body = marker + "\n" + body
	}

	existing, err := c.findComment(ctx, owner, repo, number, marker)
	if err != nil {
		return "", false, err
	}

	if existing != nil {
		c.logger.Debug("updating PR comment", "id", existing.GetID())
		updated, _, err := c.gh.Issues.EditComment(ctx, owner, repo, existing.GetID(), &github.IssueComment{Body: github.Ptr(body)})
		if err != nil {
			return "", false, wrap("edit comment", err)
		}
		return updated.GetHTMLURL(), false, nil
	}

	c.logger.Debug("creating PR comment", "pr", number)
	created, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return "", false, wrap("create comment", err)
	}
	return created.GetHTMLURL(), true, nil
}

func (c *Client) findComment(ctx context.Context, owner, repo string, number int, marker string) (*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, wrap("list comments", err)
		}
		for _, cm := range comments {
			if strings.Contains(cm.GetBody(), marker) {
				return cm, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// wrap adds context to an API error and tags authentication failures with
// ErrAuth.
func wrap(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", op, ErrAuth, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrNoToken)
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
	prURLRe       = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)/pull/(\d+)`)
	prShortRe     = regexp.MustCompile(`^([^/\s]+)/([^#\s]+)#(\d+)$`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo(ctx context.Context) (owner, repo string, err error) {
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}

// PRRef identifies a pull request.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// ParsePRRef accepts "123", "owner/repo#123" or a pull request URL. A bare
// number leaves Owner and Repo empty for the caller to detect.
func ParsePRRef(s string) (PRRef, error) {
	s = strings.TrimSpace(s)
	if m := prURLRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[3])
		return PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}
	if m := prShortRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[3])
		return PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || n <= 0 {
		return PRRef{}, fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	return PRRef{Number: n}, nil
}
