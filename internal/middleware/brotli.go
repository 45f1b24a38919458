package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliOptions tunes response compression on the bridge.
type BrotliOptions struct {
	// Level is the brotli quality, 1..11. Zero or less selects the default.
	Level int
	// MinSize is the body size from which responses are compressed.
	MinSize int
	// SkipPrefixes lists request paths that are never compressed.
	SkipPrefixes []string
}

const defaultBrotliMinSize = 2048

// brotliWriter holds the body back until MinSize bytes arrived, then
// switches to a brotli stream. Shorter bodies are written as they are.
type brotliWriter struct {
	gin.ResponseWriter
	level   int
	minSize int
	pending []byte
	br      *brotli.Writer
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.br != nil {
		return w.br.Write(data)
	}
	w.pending = append(w.pending, data...)
	if len(w.pending) < w.minSize {
		return len(data), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.br = brotli.NewWriterLevel(w.ResponseWriter, w.level)
	if _, err := w.br.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush pushes compressed bytes out. An undecided body stays buffered.
func (w *brotliWriter) Flush() {
	if w.br == nil {
		return
	}
	_ = w.br.Flush()
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) finish() error {
	if w.br != nil {
		return w.br.Close()
	}
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	return err
}

// Brotli compresses bridge responses for clients that accept "br".
func Brotli(opts BrotliOptions) gin.HandlerFunc {
	if opts.Level <= 0 || opts.Level > brotli.BestCompression {
		opts.Level = brotli.DefaultCompression
	}
	if opts.MinSize <= 0 {
		opts.MinSize = defaultBrotliMinSize
	}

	return func(c *gin.Context) {
		if skipCompression(c, opts.SkipPrefixes) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &brotliWriter{ResponseWriter: c.Writer, level: opts.Level, minSize: opts.MinSize}
		c.Writer = w
		c.Next()

		if err := w.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}

func skipCompression(c *gin.Context, prefixes []string) bool {
	if c.Request.Method == http.MethodHead {
		return true
	}
	// The websocket handshake needs the raw writer.
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	path := c.Request.URL.Path
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
