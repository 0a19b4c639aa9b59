package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
)

// DefaultBaseURL is the GitHub API root queried for releases.
const DefaultBaseURL = "https://api.github.com"

// Result holds the outcome of a release check.
type Result struct {
	Latest    string // latest release, e.g. "v0.2.0"
	Current   string // running version
	UpdateURL string // release page
}

// NeedsUpdate reports whether Latest is a newer valid version than Current.
// Unparseable versions never need an update.
func (r *Result) NeedsUpdate() bool {
	if r == nil {
		return false
	}
	latest, current := canonical(r.Latest), canonical(r.Current)
	if !semver.IsValid(latest) || !semver.IsValid(current) {
		return false
	}
	return semver.Compare(latest, current) > 0
}

type ghRelease struct {
	TagName    string `json:"tag_name"`
	HTMLURL    string `json:"html_url"`
	Prerelease bool   `json:"prerelease"`
}

// Checker looks up the latest published release of one repository.
type Checker struct {
	owner, repo string
	baseURL     string
	client      *http.Client
	logger      zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithBaseURL points the checker at another API root.
func WithBaseURL(u string) Option {
	return func(c *Checker) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) { c.client = hc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

func NewChecker(owner, repo string, opts ...Option) *Checker {
	c := &Checker{
		owner:   owner,
		repo:    repo,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fetches the latest release and pairs it with current.
func (c *Checker) Check(ctx context.Context, current string) (*Result, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release check: %s", resp.Status)
	}

	var rel ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("release check: decode: %w", err)
	}
	c.logger.Debug().Str("tag", rel.TagName).Bool("prerelease", rel.Prerelease).Msg("latest release")
	if rel.Prerelease {
		rel.TagName = ""
	}
	return &Result{
		Latest:    canonical(rel.TagName),
		Current:   canonical(current),
		UpdateURL: rel.HTMLURL,
	}, nil
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
