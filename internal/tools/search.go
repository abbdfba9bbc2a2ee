package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hattiebot/toolchat/internal/core"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint; it needs no API key.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

const (
	defaultNumResults = 5
	maxNumResults     = 20
	defaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNoResults means the page parsed but held no usable result blocks.
var ErrNoResults = errors.New("no search results")

// SearchResult is one hit.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// Searcher runs a web search. The page scraper below is one implementation; an
// official search API can replace it without touching anything else.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]SearchResult, error)
}

// HTMLSearcher scrapes a search engine's HTML result page. The selectors follow the
// DuckDuckGo HTML layout, which is not a stable contract.
type HTMLSearcher struct {
	BaseURL   string
	HTTP      *http.Client
	UserAgent string
	Timeout   time.Duration

	ResultSelector  string
	TitleSelector   string
	SnippetSelector string
}

// NewHTMLSearcher returns a searcher for baseURL ("" = DefaultSearchURL).
func NewHTMLSearcher(baseURL string, timeout time.Duration) *HTMLSearcher {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	return &HTMLSearcher{
		BaseURL:         baseURL,
		HTTP:            http.DefaultClient,
		UserAgent:       defaultUserAgent,
		Timeout:         timeout,
		ResultSelector:  "div.result",
		TitleSelector:   "a.result__a",
		SnippetSelector: ".result__snippet",
	}
}

// Search fetches the result page for query and extracts up to n results.
func (s *HTMLSearcher) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("search: bad base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html")

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search: parse: %w", err)
	}
	var results []SearchResult
	doc.Find(s.ResultSelector).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if block.HasClass("result--ad") {
			return true
		}
		a := block.Find(s.TitleSelector).First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		link := resultLink(href)
		// Relative links point back into the engine itself.
		if link == "" || strings.HasPrefix(link, "/") {
			return true
		}
		results = append(results, SearchResult{
			Title:   collapseSpace(a.Text()),
			Link:    link,
			Snippet: collapseSpace(block.Find(s.SnippetSelector).First().Text()),
		})
		return len(results) < n
	})
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// resultLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=<target>).
func resultLink(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type searchKey struct {
	query string
	n     int
}

// CachedSearcher memoizes another Searcher for a bounded time.
type CachedSearcher struct {
	inner Searcher
	cache *expirable.LRU[searchKey, []SearchResult]
}

// NewCachedSearcher wraps inner. size <= 0 disables caching and returns inner.
func NewCachedSearcher(inner Searcher, size int, ttl time.Duration) Searcher {
	if size <= 0 {
		return inner
	}
	return &CachedSearcher{
		inner: inner,
		cache: expirable.NewLRU[searchKey, []SearchResult](size, nil, ttl),
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	key := searchKey{query: strings.ToLower(strings.TrimSpace(query)), n: n}
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}
	res, err := c.inner.Search(ctx, query, n)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, res)
	return res, nil
}

// SearchWebTool exposes a Searcher to the model.
type SearchWebTool struct {
	Searcher Searcher
}

func (t *SearchWebTool) Spec() Spec {
	return Spec{
		Name:        "search_web",
		Description: "Search the web and return the top results (title, link, snippet).",
		Params: []Param{
			{Name: "query", Type: ParamString, Description: "The search query.", Required: true},
			{Name: "num_results", Type: ParamInteger, Description: "Maximum number of results (default 5, max 20)."},
		},
	}
}

func (t *SearchWebTool) Execute(ctx context.Context, args Args) core.Outcome {
	query := strings.TrimSpace(args.String("query", ""))
	if query == "" {
		return core.Failure("Error: query is required.")
	}
	n := args.IntIn("num_results", defaultNumResults, 1, maxNumResults)
	if t.Searcher == nil {
		return core.Failure("Error: web search is not configured.")
	}
	results, err := t.Searcher.Search(ctx, query, n)
	if errors.Is(err, ErrNoResults) {
		return errorf("No results found for '%s' (or they could not be extracted).", query)
	}
	if err != nil {
		return errorf("Error: web search failed: %v", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for '%s':\n", query)
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "N/A"
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "N/A"
		}
		fmt.Fprintf(&b, "\n%d. %s\n   Link: %s\n   Snippet: %s\n", i+1, title, r.Link, snippet)
	}
	return core.Success(strings.TrimSpace(b.String()))
}
