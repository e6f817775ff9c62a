package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression.
type BrotliConfig struct {
	Quality int
	// MinLength is the smallest body worth compressing.
	MinLength int
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// bufferedWriter holds the body until the handler returns so the size is
// known before choosing an encoding.
type bufferedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) { return w.body.Write(data) }

func (w *bufferedWriter) WriteString(s string) (int, error) { return w.body.WriteString(s) }

// Brotli compresses responses for clients that accept "br".
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

// BrotliWithConfig is Brotli with explicit settings.
func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		// WebSocket upgrades and event streams need the raw writer.
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") ||
			strings.Contains(c.GetHeader("Accept"), "text/event-stream") ||
			!acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		orig := c.Writer
		bw := &bufferedWriter{ResponseWriter: orig}
		c.Writer = bw
		c.Next()
		c.Writer = orig

		orig.Header().Add("Vary", "Accept-Encoding")
		body := bw.body.Bytes()
		if len(body) < cfg.MinLength || orig.Header().Get("Content-Encoding") != "" {
			_, _ = orig.Write(body)
			return
		}

		var out bytes.Buffer
		zw := brotli.NewWriterLevel(&out, cfg.Quality)
		if _, err := zw.Write(body); err != nil || zw.Close() != nil {
			_, _ = orig.Write(body)
			return
		}

		orig.Header().Set("Content-Encoding", "br")
		orig.Header().Set("Content-Length", strconv.Itoa(out.Len()))
		_, _ = orig.Write(out.Bytes())
	}
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
