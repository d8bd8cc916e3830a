// Package forge resolves (owner, repo, channel) to a types.Release
// against a code-hosting forge's REST API (spec.md §4.1).
//
// Grounded on the teacher's pkg/manager/github package: a singleton
// *github.Client wrapping google/go-github, token resolved from a list of
// environment variables via golang.org/x/oauth2, with the same
// REST-first, typed-error-on-failure shape.
package forge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/version"
)

// TokenEnvVars lists the environment variables consulted for an
// authentication token, tried in order, first non-empty wins.
var TokenEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN", "MY_UNICORN_TOKEN"}

// Client is a thin wrapper around *github.Client adding the channel
// semantics and typed-error mapping spec.md §4.1 requires.
type Client struct {
	gh          *github.Client
	token       string
	tokenSource string
	mu          sync.RWMutex
}

// New builds a Client, resolving a token from the environment or an
// explicit credential file path (CredentialFilePath), unauthenticated
// requests are permitted but subject to stricter rate limits.
func New() *Client {
	token, source := resolveToken()
	return newWithToken(token, source)
}

func newWithToken(token, source string) *Client {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient := oauth2.NewClient(context.Background(), ts)
		gh = github.NewClient(httpClient)
	} else {
		gh = github.NewClient(nil)
	}
	return &Client{gh: gh, token: token, tokenSource: source}
}

func resolveToken() (token, source string) {
	for _, name := range TokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v, name
		}
	}
	if path, err := CredentialFilePath(); err == nil {
		if data, err := os.ReadFile(path); err == nil {
			if t := strings.TrimSpace(string(data)); t != "" {
				return t, path
			}
		}
	}
	return "", ""
}

// CredentialFilePath returns the path to the optional credential file
// ($XDG_CONFIG_HOME/my-unicorn/credentials, falling back to
// ~/.config/my-unicorn/credentials).
func CredentialFilePath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = home + "/.config"
	}
	return dir + "/my-unicorn/credentials", nil
}

// SetToken overrides the client's token at runtime (e.g. from a CLI flag).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c.gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	c.token = token
	c.tokenSource = "override"
}

// TokenSource reports which source supplied the current token, or "" if
// unauthenticated.
func (c *Client) TokenSource() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenSource
}

// GetLatestRelease resolves (owner, repo, channel) to a Release, or nil if
// the forge has none matching (spec.md §4.1).
//
// Channel semantics:
//   - stable: the single latest non-prerelease release.
//   - prerelease: list releases, return the topmost entry (possibly
//     prerelease).
//   - latest: whichever release is most recent by publish timestamp.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string, channel types.Channel) (*types.Release, error) {
	if owner == "" || repo == "" {
		return nil, &apperrors.ValidationError{Target: owner + "/" + repo, Reason: "owner and repo must be non-empty"}
	}

	c.mu.RLock()
	gh := c.gh
	c.mu.RUnlock()

	switch channel {
	case types.ChannelStable, "":
		rel, resp, err := gh.Repositories.GetLatestRelease(ctx, owner, repo)
		if err != nil {
			return nil, c.classifyError(owner, repo, resp, err)
		}
		return toRelease(owner, repo, rel), nil

	case types.ChannelPrerelease, types.ChannelLatest:
		releases, resp, err := gh.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 20})
		if err != nil {
			return nil, c.classifyError(owner, repo, resp, err)
		}
		if len(releases) == 0 {
			return nil, nil
		}
		if channel == types.ChannelPrerelease {
			return toRelease(owner, repo, releases[0]), nil
		}
		// latest: pick by publish timestamp, newest first.
		best := releases[0]
		for _, r := range releases[1:] {
			if r.GetPublishedAt().After(best.GetPublishedAt().Time) {
				best = r
			}
		}
		return toRelease(owner, repo, best), nil

	default:
		return nil, &apperrors.ValidationError{Target: string(channel), Reason: "unknown channel"}
	}
}

func (c *Client) classifyError(owner, repo string, resp *github.Response, err error) error {
	if resp == nil {
		return &apperrors.NetworkError{Op: fmt.Sprintf("fetch %s/%s", owner, repo), Err: err}
	}
	switch resp.StatusCode {
	case 404:
		return nil // 404: the lookup then returns nil, nil, meaning "no release"
	case 403:
		reset := ""
		if resp.Rate.Reset.Time.Unix() > 0 {
			reset = resp.Rate.Reset.Time.String()
		}
		if isRateLimit(err) {
			return &apperrors.RateLimitError{Owner: owner, Repo: repo, ResetAt: reset}
		}
		return &apperrors.ForgeError{Owner: owner, Repo: repo, StatusCode: resp.StatusCode, Message: err.Error()}
	default:
		return &apperrors.ForgeError{Owner: owner, Repo: repo, StatusCode: resp.StatusCode, Message: err.Error()}
	}
}

func isRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "api rate")
}

func toRelease(owner, repo string, r *github.RepositoryRelease) *types.Release {
	tag := r.GetTagName()
	normalized, prerelease := version.TagToVersion(tag)
	if r.GetPrerelease() {
		prerelease = true
	}

	assets := make([]types.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, types.Asset{
			Name:        a.GetName(),
			Size:        int64(a.GetSize()),
			DownloadURL: a.GetBrowserDownloadURL(),
			Digest:      a.GetDigest(),
		})
	}

	return &types.Release{
		Owner:       owner,
		Repo:        repo,
		Version:     normalized,
		Prerelease:  prerelease,
		Tag:         tag,
		PublishedAt: r.GetPublishedAt().Time,
		Assets:      assets,
	}
}
