package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

type flushWriter interface {
	io.WriteCloser
	Flush() error
}

type compressWriter struct {
	http.ResponseWriter
	enc         flushWriter
	wroteHeader bool
}

func (w *compressWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.enc.Write(b)
}

// Flush pushes buffered compressed bytes to the client.
func (w *compressWriter) Flush() {
	_ = w.enc.Flush()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

var (
	gzipPool = sync.Pool{New: func() any { return gzip.NewWriter(io.Discard) }}
	brPool   = sync.Pool{New: func() any { return brotli.NewWriterLevel(io.Discard, brotli.DefaultCompression) }}
)

// negotiateEncoding prefers br over gzip. q-values are honoured only to the
// extent that q=0 excludes an encoding.
func negotiateEncoding(header string) string {
	var br, gz bool
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	}
	return ""
}

// Compress encodes responses with brotli or gzip when the client accepts it.
// WebSocket upgrades are passed through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" || r.Method == http.MethodHead || strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		var enc flushWriter
		switch encoding {
		case "br":
			bw := brPool.Get().(*brotli.Writer)
			bw.Reset(w)
			defer brPool.Put(bw)
			enc = bw
		default:
			gw := gzipPool.Get().(*gzip.Writer)
			gw.Reset(w)
			defer gzipPool.Put(gw)
			enc = gw
		}

		w.Header().Set("Content-Encoding", encoding)
		cw := &compressWriter{ResponseWriter: w, enc: enc}
		defer enc.Close()
		next.ServeHTTP(cw, r)
	})
}
