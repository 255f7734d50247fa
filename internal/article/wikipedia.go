package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/latebit/wikinet/internal/fetch"
)

// WikipediaOptions configures a MediaWiki Action API client.
type WikipediaOptions struct {
	Language string // "en" by default
	Endpoint string // overrides https://<language>.wikipedia.org/w/api.php

	// Namespace restricts Links to one namespace (0 = articles).
	// AllNamespaces disables the restriction.
	Namespace     int
	AllNamespaces bool

	Client *fetch.Client
	Logger *slog.Logger
}

// Wikipedia reads articles from a MediaWiki Action API.
type Wikipedia struct {
	endpoint string
	host     string
	opts     WikipediaOptions
}

// NewWikipedia creates a MediaWiki-backed Source.
func NewWikipedia(opts WikipediaOptions) (*Wikipedia, error) {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "https://" + opts.Language + ".wikipedia.org/w/api.php"
	}
	if opts.Client == nil {
		opts.Client = fetch.NewClient(fetch.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", opts.Endpoint)
	}
	return &Wikipedia{endpoint: opts.Endpoint, host: u.Host, opts: opts}, nil
}

// Host returns the API host, e.g. "en.wikipedia.org".
func (w *Wikipedia) Host() string {
	return w.host
}

type apiResponse struct {
	Error    *apiError         `json:"error"`
	Continue map[string]string `json:"continue"`
	Query    struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiPage struct {
	Title   string `json:"title"`
	Missing bool   `json:"missing"`
	Invalid bool   `json:"invalid"`
	Extract string `json:"extract"`
	Links   []struct {
		NS    int    `json:"ns"`
		Title string `json:"title"`
	} `json:"links"`
}

func (w *Wikipedia) query(ctx context.Context, title string, params url.Values) (*apiResponse, *apiPage, error) {
	q := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"titles":        {title},
	}
	for k, v := range params {
		q[k] = v
	}

	var resp apiResponse
	if err := w.opts.Client.GetJSON(ctx, w.endpoint, q, &resp); err != nil {
		return nil, nil, fmt.Errorf("query %q: %w", title, err)
	}
	if resp.Error != nil {
		return nil, nil, fmt.Errorf("query %q: mediawiki %s: %s", title, resp.Error.Code, resp.Error.Info)
	}
	if len(resp.Query.Pages) == 0 {
		return nil, nil, fmt.Errorf("query %q: %w", title, ErrNotFound)
	}
	page := &resp.Query.Pages[0]
	if page.Missing || page.Invalid {
		w.opts.Logger.Warn("article does not exist", "title", title)
		return nil, nil, fmt.Errorf("query %q: %w", title, ErrNotFound)
	}
	return &resp, page, nil
}

// Exists reports whether the article exists.
func (w *Wikipedia) Exists(ctx context.Context, title string) (bool, error) {
	_, _, err := w.query(ctx, title, url.Values{"prop": {"info"}})
	observe("exists", err)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Text returns the plain-text body of the article.
func (w *Wikipedia) Text(ctx context.Context, title string) (string, error) {
	_, page, err := w.query(ctx, title, url.Values{
		"prop":        {"extracts"},
		"explaintext": {"1"},
	})
	observe("text", err)
	if err != nil {
		return "", err
	}
	return page.Extract, nil
}

// Links returns the titles linked from the article in API order, following
// continuation until the list is complete.
func (w *Wikipedia) Links(ctx context.Context, title string) ([]string, error) {
	params := url.Values{
		"prop":    {"links"},
		"pllimit": {"max"},
	}
	if !w.opts.AllNamespaces {
		params.Set("plnamespace", strconv.Itoa(w.opts.Namespace))
	}

	var links []string
	for {
		resp, page, err := w.query(ctx, title, params)
		if err != nil {
			observe("links", err)
			return nil, err
		}
		for _, l := range page.Links {
			links = append(links, l.Title)
		}

		next, ok := resp.Continue["plcontinue"]
		if !ok || next == params.Get("plcontinue") {
			break
		}
		params.Set("plcontinue", next)
		if c, ok := resp.Continue["continue"]; ok {
			params.Set("continue", c)
		}
	}
	observe("links", nil)
	return links, nil
}
