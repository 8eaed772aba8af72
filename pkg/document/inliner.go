// Package document fetches local or remote documents and prepares them for
// in-conversation analysis.
package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxBytes caps inlined documents; larger ones are rejected
	// rather than silently truncated.
	DefaultMaxBytes = 2 << 20 // 2 MiB

	fetchTimeout = 30 * time.Second
)

// Document is a fetched document ready for analysis. Text carries the content
// for textual MIME types; Base64 carries it for everything else.
type Document struct {
	Source string
	MIME   string
	Size   int
	Text   string
	Base64 string
}

// Inliner loads documents from the local filesystem or over HTTP.
type Inliner struct {
	maxBytes int
	http     *http.Client
	logger   zerolog.Logger
}

// NewInliner creates an inliner. maxBytes <= 0 selects DefaultMaxBytes.
func NewInliner(maxBytes int, logger zerolog.Logger) *Inliner {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Inliner{
		maxBytes: maxBytes,
		http:     &http.Client{Timeout: fetchTimeout},
		logger:   logger,
	}
}

// Inline loads source, which is either an http(s) URL or a local file path,
// and returns it with its sniffed MIME type.
func (in *Inliner) Inline(ctx context.Context, source string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = in.fetch(ctx, source)
	} else {
		data, err = in.readFile(source)
	}
	if err != nil {
		return nil, err
	}

	if len(data) > in.maxBytes {
		return nil, fmt.Errorf("document %s is %d bytes, exceeds the %d byte limit", source, len(data), in.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("document %s is empty", source)
	}

	mime := sniffMIME(data)
	doc := &Document{Source: source, MIME: mime, Size: len(data)}
	if isText(mime) {
		doc.Text = string(data)
	} else {
		doc.Base64 = base64.StdEncoding.EncodeToString(data)
	}

	in.logger.Debug().Str("source", source).Str("mime", mime).Int("bytes", len(data)).Msg("Document inlined")
	return doc, nil
}

func (in *Inliner) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}

	resp, err := in.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(in.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", url, err)
	}
	return data, nil
}

func (in *Inliner) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	return data, nil
}

func sniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	// DetectContentType appends charset parameters for text types.
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return mime
}

func isText(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/xml", "application/javascript":
		return true
	}
	return false
}
