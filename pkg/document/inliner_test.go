package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestInlineLocalTextFile(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("quarterly revenue grew 12%"))
	inliner := NewInliner(0, zerolog.Nop())

	doc, err := inliner.Inline(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MIME)
	assert.Equal(t, "quarterly revenue grew 12%", doc.Text)
	assert.Empty(t, doc.Base64)
}

func TestInlineBinaryFile(t *testing.T) {
	// PNG magic bytes make DetectContentType report image/png.
	png := append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 64)...)
	path := writeTempFile(t, "shot.png", png)
	inliner := NewInliner(0, zerolog.Nop())

	doc, err := inliner.Inline(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.MIME)
	assert.Empty(t, doc.Text)
	assert.NotEmpty(t, doc.Base64)
}

func TestInlineRemoteDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	inliner := NewInliner(0, zerolog.Nop())
	doc, err := inliner.Inline(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok"}`, doc.Text)
}

func TestInlineRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	inliner := NewInliner(0, zerolog.Nop())
	_, err := inliner.Inline(context.Background(), server.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestInlineSizeCap(t *testing.T) {
	path := writeTempFile(t, "big.txt", []byte(strings.Repeat("a", 100)))
	inliner := NewInliner(50, zerolog.Nop())

	_, err := inliner.Inline(context.Background(), path)
	assert.ErrorContains(t, err, "exceeds the 50 byte limit")
}

func TestInlineMissingAndEmpty(t *testing.T) {
	inliner := NewInliner(0, zerolog.Nop())

	_, err := inliner.Inline(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)

	empty := writeTempFile(t, "empty.txt", nil)
	_, err = inliner.Inline(context.Background(), empty)
	assert.ErrorContains(t, err, "is empty")
}

func TestAnalyzeTool(t *testing.T) {
	path := writeTempFile(t, "report.txt", []byte("headcount is 42"))

	registry := tool.NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterTools(registry, NewInliner(0, zerolog.Nop())))

	output, err := registry.Execute(context.Background(), "document.analyze", map[string]string{
		"source":   path,
		"question": "What is the headcount?",
	})
	require.NoError(t, err)
	assert.Contains(t, output, "text/plain")
	assert.Contains(t, output, "Question: What is the headcount?")
	assert.Contains(t, output, "headcount is 42")
}

func TestAnalyzeToolRequiresSource(t *testing.T) {
	registry := tool.NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterTools(registry, NewInliner(0, zerolog.Nop())))

	_, err := registry.Execute(context.Background(), "document.analyze", nil)
	assert.Error(t, err)
}
