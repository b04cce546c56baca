package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rag-backend/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Week 12 Checkup</title></head>` +
			`<body><p>Schedule the nuchal translucency scan.</p></body></html>`))
	}))
	defer server.Close()

	loader := NewLoader(nil, nil)
	docs, err := loader.FromURL(context.Background(), server.URL, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].Content, "Schedule the nuchal translucency scan.")
	assert.Equal(t, "Week 12 Checkup", docs[0].Metadata["title"])
	assert.Equal(t, server.URL, docs[0].Metadata["source"])
	assert.Equal(t, SourceTypeURL, docs[0].Metadata["type"])
	assert.NotNil(t, docs[0].Metadata["date_added"])
}

func TestFromURLExplicitTitleWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Page Title</title></head><body><p>content body</p></body></html>`))
	}))
	defer server.Close()

	loader := NewLoader(nil, nil)
	docs, err := loader.FromURL(context.Background(), server.URL, "My Title")
	require.NoError(t, err)
	assert.Equal(t, "My Title", docs[0].Metadata["title"])
}

func TestFromURLRejectsBadSchemes(t *testing.T) {
	loader := NewLoader(nil, nil)
	for _, raw := range []string{"ftp://example.com/doc", "file:///etc/passwd", "not a url", ""} {
		_, err := loader.FromURL(context.Background(), raw, "")
		assert.Error(t, err, "url %q should be rejected", raw)
	}
}

func TestFromURLNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	loader := NewLoader(nil, nil)
	_, err := loader.FromURL(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFromURLNoReadableText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script>only();</script></head></html>`))
	}))
	defer server.Close()

	loader := NewLoader(nil, nil)
	_, err := loader.FromURL(context.Background(), server.URL, "")
	assert.Error(t, err)
}

func TestFromText(t *testing.T) {
	loader := NewLoader(nil, nil)
	docs, err := loader.FromText([]byte("  some notes about the third trimester  "), "notes.txt", "")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "some notes about the third trimester", docs[0].Content)
	assert.Equal(t, "notes.txt", docs[0].Metadata["title"], "title falls back to filename")
	assert.Equal(t, SourceTypeText, docs[0].Metadata["type"])
}

func TestFromTextEmpty(t *testing.T) {
	loader := NewLoader(nil, nil)
	_, err := loader.FromText([]byte("   \n  "), "empty.txt", "")
	assert.Error(t, err)
}

func TestFromPDFRejectsGarbage(t *testing.T) {
	loader := NewLoader(nil, nil)
	_, err := loader.FromPDF([]byte("not a pdf at all"), "broken.pdf", "")
	assert.Error(t, err)
}

func TestFromPDFRejectsOversize(t *testing.T) {
	loader := NewLoader(&LoaderConfig{MaxFileSize: 16}, nil)
	_, err := loader.FromPDF(make([]byte, 64), "big.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestLastPathSegment(t *testing.T) {
	loader := NewLoader(nil, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>untitled page body</p></body></html>`))
	}))
	defer server.Close()

	docs, err := loader.FromURL(context.Background(), server.URL+"/guides/sleep-positions", "")
	require.NoError(t, err)
	assert.Equal(t, "sleep-positions", docs[0].Metadata["title"])
}
