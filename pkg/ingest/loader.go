// Package ingest loads user-supplied documents (web pages, PDFs, plain
// text), splits them into overlapping chunks, and indexes them for
// retrieval.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Document source types recorded in metadata.
const (
	SourceTypeURL  = "url"
	SourceTypePDF  = "pdf"
	SourceTypeText = "text"
)

// Document is a loaded source document before chunking.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// LoaderConfig holds configuration for the document loader.
type LoaderConfig struct {
	MaxFileSize    int64         `json:"max_file_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
	UserAgent      string        `json:"user_agent"`
}

func defaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxFileSize:    32 << 20,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "rag-backend/1.0",
	}
}

// Loader fetches and parses documents from URLs, PDFs, and text files.
type Loader struct {
	config     *LoaderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLoader creates a document loader.
func NewLoader(config *LoaderConfig, logger *slog.Logger) *Loader {
	if config == nil {
		config = defaultLoaderConfig()
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 32 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		logger: logger.With("component", "document-loader"),
	}
}

// FromURL fetches a web page and extracts its readable text. The title
// falls back to the page <title>, then the last URL path segment.
func (l *Loader) FromURL(ctx context.Context, rawURL, title string) ([]Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("URL returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.config.MaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	pageTitle, text := extractHTMLText(bytes.NewReader(body))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no readable text found at %s", rawURL)
	}

	docTitle := title
	if docTitle == "" {
		docTitle = pageTitle
	}
	if docTitle == "" {
		docTitle = lastPathSegment(parsed)
	}

	l.logger.Info("loaded document from URL",
		slog.String("url", rawURL),
		slog.Int("content_length", len(text)))

	return []Document{{
		Content: text,
		Metadata: map[string]any{
			"source":     rawURL,
			"title":      docTitle,
			"type":       SourceTypeURL,
			"date_added": time.Now().UTC(),
		},
	}}, nil
}

// FromPDF extracts the text of every page of a PDF. Pages are joined into
// a single document; the page count is recorded in metadata.
func (l *Loader) FromPDF(content []byte, filename, title string) ([]Document, error) {
	if int64(len(content)) > l.config.MaxFileSize {
		return nil, fmt.Errorf("PDF exceeds maximum size of %d bytes", l.config.MaxFileSize)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var sb strings.Builder
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("failed to extract PDF page",
				slog.String("filename", filename),
				slog.Int("page", i),
				slog.String("error", err.Error()))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	content2 := strings.TrimSpace(sb.String())
	if content2 == "" {
		return nil, fmt.Errorf("no extractable text in PDF %q", filename)
	}

	docTitle := title
	if docTitle == "" {
		docTitle = filename
	}

	l.logger.Info("loaded PDF document",
		slog.String("filename", filename),
		slog.Int("pages", pageCount),
		slog.Int("content_length", len(content2)))

	return []Document{{
		Content: content2,
		Metadata: map[string]any{
			"source":     filename,
			"title":      docTitle,
			"type":       SourceTypePDF,
			"page_count": pageCount,
			"date_added": time.Now().UTC(),
		},
	}}, nil
}

// FromText wraps a plain text or markdown file as a document.
func (l *Loader) FromText(content []byte, filename, title string) ([]Document, error) {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, fmt.Errorf("text file %q is empty", filename)
	}

	docTitle := title
	if docTitle == "" {
		docTitle = filename
	}

	return []Document{{
		Content: text,
		Metadata: map[string]any{
			"source":     filename,
			"title":      docTitle,
			"type":       SourceTypeText,
			"date_added": time.Now().UTC(),
		},
	}}, nil
}

func lastPathSegment(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return u.Host
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
