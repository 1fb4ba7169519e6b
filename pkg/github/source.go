// Package github lists repositories and gists owned by a GitHub user.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/utilitywarehouse/gh-mirror/internal/lock"
	"github.com/utilitywarehouse/gh-mirror/pkg/auth"
)

const defaultPerPage = 100

var ErrAPI = errors.New("github api request failed")

type Kind string

const (
	KindRepo Kind = "repo"
	KindGist Kind = "gist"
)

// Descriptor identifies a remote repository or gist to mirror.
// For gists Name is the gist ID.
type Descriptor struct {
	Kind     Kind
	CloneURL string
	Name     string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s, %s)", d.Kind, d.CloneURL, d.Name)
}

// Config is the configuration of the API client
type Config struct {
	// APIURL defaults to https://api.github.com
	APIURL string
	// Token is a personal access token, takes precedence over App
	Token string
	// App is used to mint installation tokens if set
	App *auth.GithubApp
	// PerPage is the page size used for listing, max 100
	PerPage int

	HTTPClient *http.Client
}

// Client lists repositories and gists of a user.
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	apiURL  string
	token   string
	app     *auth.GithubApp
	perPage int
	http    *http.Client
	log     *slog.Logger

	lock           lock.Mutex
	appToken       string
	appTokenExpiry time.Time
}

// New creates API client from the given config.
func New(conf Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		apiURL:  strings.TrimRight(conf.APIURL, "/"),
		token:   conf.Token,
		app:     conf.App,
		perPage: conf.PerPage,
		http:    conf.HTTPClient,
		log:     log,
	}
	if c.apiURL == "" {
		c.apiURL = auth.DefaultAPIURL
	}
	if c.perPage <= 0 || c.perPage > defaultPerPage {
		c.perPage = defaultPerPage
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: time.Minute}
	}
	return c
}

type gist struct {
	ID         string `json:"id"`
	GitPullURL string `json:"git_pull_url"`
}

type repo struct {
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`
}

// Descriptors returns all gists followed by all repositories of the given user.
// The sequence fetches pages lazily as it is consumed and it can only be
// consumed once. On failure the error is yielded and the sequence ends.
func (c *Client) Descriptors(ctx context.Context, user string) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		gistsURL := c.listURL("users", user, "gists")
		for g, err := range list[gist](ctx, c, gistsURL) {
			if err != nil {
				yield(Descriptor{}, fmt.Errorf("unable to list gists of user '%s': %w", user, err))
				return
			}
			if !yield(Descriptor{Kind: KindGist, CloneURL: g.GitPullURL, Name: g.ID}, nil) {
				return
			}
		}

		reposURL := c.listURL("users", user, "repos")
		for r, err := range list[repo](ctx, c, reposURL) {
			if err != nil {
				yield(Descriptor{}, fmt.Errorf("unable to list repos of user '%s': %w", user, err))
				return
			}
			if !yield(Descriptor{Kind: KindRepo, CloneURL: r.CloneURL, Name: r.Name}, nil) {
				return
			}
		}
	}
}

// Collect consumes the sequence and returns all descriptors or the first error
func Collect(seq iter.Seq2[Descriptor, error]) ([]Descriptor, error) {
	var descs []Descriptor
	for d, err := range seq {
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Token returns the token used for API requests, it can also be used as
// password for https git operations. empty token means anonymous access.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.token != "" || c.app == nil {
		return c.token, nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	// return token if current token is valid for next 10 min
	if c.appTokenExpiry.After(time.Now().UTC().Add(10 * time.Minute)) {
		return c.appToken, nil
	}

	token, err := c.app.InstallationToken(ctx, auth.GithubAppTokenReqPermissions{
		Permissions: map[string]string{"contents": "read", "metadata": "read"},
	})
	if err != nil {
		return "", fmt.Errorf("unable to get github app token: %w", err)
	}

	c.appToken = token.Token
	c.appTokenExpiry = token.ExpiresAt

	c.log.Debug("new github app access token created")

	return c.appToken, nil
}

func (c *Client) listURL(elem ...string) string {
	for i := range elem {
		elem[i] = url.PathEscape(elem[i])
	}
	return c.apiURL + "/" + strings.Join(elem, "/") + "?per_page=" + strconv.Itoa(c.perPage)
}

// list yields items of all the pages starting from given URL
func list[T any](ctx context.Context, c *Client, pageURL string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for pageURL != "" {
			var items []T
			next, err := c.get(ctx, pageURL, &items)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			pageURL = next
		}
	}
}

// get decodes JSON body of the given URL into v and returns URL of the next
// page if there is one
func (c *Client) get(ctx context.Context, pageURL string, v any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Log(ctx, -8, "api request", "url", pageURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: GET %s status:%d body:%q", ErrAPI, pageURL, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", fmt.Errorf("unable to decode response of %s err:%w", pageURL, err)
	}

	return nextPage(resp.Header.Get("Link")), nil
}

// nextPage returns the URL with rel="next" from the Link header
//
//	<https://api.github.com/user/1/repos?page=2>; rel="next", <https://api.github.com/user/1/repos?page=5>; rel="last"
func nextPage(link string) string {
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}
