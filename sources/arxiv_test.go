package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2401.12345v1</id>
    <updated>2024-02-01T10:00:00Z</updated>
    <published>2024-01-15T12:00:00Z</published>
    <title>Attention Is
      Still All You Need</title>
    <summary>  We revisit
   transformers.  </summary>
    <author><name>Alice</name></author>
    <author><name>Bob</name></author>
    <link href="http://arxiv.org/abs/2401.12345v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.12345v1" rel="related" type="application/pdf"/>
    <category term="cs.CL"/>
    <category term="cs.AI"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2402.00001v2</id>
    <published>2024-02-02T00:00:00Z</published>
    <title>Second</title>
    <summary>Short.</summary>
    <author><name>Carol</name></author>
  </entry>
</feed>`

func newTestSource(t *testing.T, handler http.HandlerFunc) *ArxivSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultArxivConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 2
	cfg.RetryDelay = time.Millisecond
	return NewArxivSource(cfg, nil)
}

func TestArxivSource_Search(t *testing.T) {
	t.Parallel()

	var gotQuery string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		assert.Equal(t, "relevance", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "descending", r.URL.Query().Get("sortOrder"))
		assert.Equal(t, "2", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	})

	papers, err := src.Search(context.Background(), "transformer attention", 2)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Equal(t, "all:transformer attention", gotQuery)
	p := papers[0]
	assert.Equal(t, "Attention Is Still All You Need", p.Title)
	assert.Equal(t, "We revisit transformers.", p.Summary)
	assert.Equal(t, []string{"Alice", "Bob"}, p.Authors)
	assert.Equal(t, []string{"cs.CL", "cs.AI"}, p.Categories)
	assert.Equal(t, "http://arxiv.org/pdf/2401.12345v1", p.PDFURL)
	assert.Equal(t, "http://arxiv.org/abs/2401.12345v1", p.AbstractURL)
	assert.Equal(t, 2024, p.Published.Year())
	assert.Empty(t, papers[1].PDFURL)
}

func TestArxivSource_SearchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	})

	papers, err := src.Search(context.Background(), "llm", 5)
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestArxivSource_SearchClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := src.Search(context.Background(), "llm", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestArxivSource_SearchEmptyQuery(t *testing.T) {
	t.Parallel()

	src := NewArxivSource(DefaultArxivConfig(), nil)
	_, err := src.Search(context.Background(), "   ", 3)
	assert.Error(t, err)
}

func TestArxivSource_SearchMalformedXML(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<feed><entry>"))
	})
	_, err := src.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestArxivSource_BuildQueryWithCategories(t *testing.T) {
	t.Parallel()

	cfg := DefaultArxivConfig()
	cfg.Categories = []string{"cs.AI", "cs.CL"}
	src := NewArxivSource(cfg, nil)

	assert.Equal(t, "all:deep learning AND (cat:cs.AI OR cat:cs.CL)", src.buildQuery("deep learning"))
}

func TestParseFeed_SkipsErrorEntry(t *testing.T) {
	t.Parallel()

	papers, err := parseFeed([]byte(`<feed><entry><title>Error</title><summary>bad query</summary></entry></feed>`))
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestToJSON_Empty(t *testing.T) {
	t.Parallel()

	out, err := ToJSON([]ArxivPaper{})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
