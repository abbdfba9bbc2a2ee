package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com">Sponsored</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go
     Programming Language</a></h2>
  <a class="result__snippet">Go is an open source   programming language.</a>
</div>
<div class="result results_links">
  <a class="result__a" href="/internal/link">Internal</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://pkg.go.dev/">Go Packages</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.org/third">Third</a>
  <div class="result__snippet">third snippet</div>
</div>
</body></html>`

func searchServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTMLSearcher_ParsesResults(t *testing.T) {
	srv := searchServer(t, http.StatusOK, resultsPage, nil)
	s := NewHTMLSearcher(srv.URL, 5*time.Second)

	got, err := s.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SearchResult{
		Title:   "The Go Programming Language",
		Link:    "https://go.dev/",
		Snippet: "Go is an open source programming language.",
	}, got[0])
	assert.Equal(t, "https://pkg.go.dev/", got[1].Link)
	assert.Empty(t, got[1].Snippet)
}

func TestHTMLSearcher_NoBlocks(t *testing.T) {
	srv := searchServer(t, http.StatusOK, "<html><body><p>captcha</p></body></html>", nil)
	_, err := NewHTMLSearcher(srv.URL, time.Second).Search(context.Background(), "golang", 5)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestHTMLSearcher_HTTPError(t *testing.T) {
	srv := searchServer(t, http.StatusServiceUnavailable, "down", nil)
	_, err := NewHTMLSearcher(srv.URL, time.Second).Search(context.Background(), "golang", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestSearchWebTool_Format(t *testing.T) {
	srv := searchServer(t, http.StatusOK, resultsPage, nil)
	tool := &SearchWebTool{Searcher: NewHTMLSearcher(srv.URL, time.Second)}

	text, isErr := run(t, tool, Args{"query": "golang", "num_results": float64(3)})
	require.False(t, isErr, text)
	want := "Web search results for 'golang':\n\n" +
		"1. The Go Programming Language\n   Link: https://go.dev/\n   Snippet: Go is an open source programming language.\n\n" +
		"2. Go Packages\n   Link: https://pkg.go.dev/\n   Snippet: N/A\n\n" +
		"3. Third\n   Link: https://example.org/third\n   Snippet: third snippet"
	assert.Equal(t, want, text)
}

type stubSearcher struct {
	err error
}

func (s stubSearcher) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	return nil, s.err
}

type countingSearcher struct {
	got []int
}

func (s *countingSearcher) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	s.got = append(s.got, n)
	return []SearchResult{{Title: "t", Link: "https://example.org"}}, nil
}

func TestSearchWebTool_ClampsNumResults(t *testing.T) {
	s := &countingSearcher{}
	tool := &SearchWebTool{Searcher: s}

	for _, n := range []interface{}{float64(1e20), float64(-1e20), float64(0), "50", nil} {
		_, isErr := run(t, tool, Args{"query": "x", "num_results": n})
		require.False(t, isErr)
	}
	assert.Equal(t, []int{maxNumResults, 1, 1, maxNumResults, defaultNumResults}, s.got)
}

func TestSearchWebTool_Failures(t *testing.T) {
	text, isErr := run(t, &SearchWebTool{Searcher: stubSearcher{err: ErrNoResults}}, Args{"query": "x"})
	assert.True(t, isErr)
	assert.Contains(t, text, "No results found for 'x'")

	text, isErr = run(t, &SearchWebTool{Searcher: stubSearcher{err: errors.New("dial tcp: refused")}}, Args{"query": "x"})
	assert.True(t, isErr)
	assert.Contains(t, text, "web search failed: dial tcp: refused")

	_, isErr = run(t, &SearchWebTool{Searcher: stubSearcher{}}, Args{"query": "  "})
	assert.True(t, isErr)
}

func TestCachedSearcher(t *testing.T) {
	var hits int32
	srv := searchServer(t, http.StatusOK, resultsPage, &hits)
	s := NewCachedSearcher(NewHTMLSearcher(srv.URL, time.Second), 8, time.Minute)

	first, err := s.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCachedSearcher_Disabled(t *testing.T) {
	inner := stubSearcher{}
	assert.Equal(t, Searcher(inner), NewCachedSearcher(inner, 0, time.Minute))
}
