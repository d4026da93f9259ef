package internal

import (
	"bufio"
	"net"
	"net/http"
	"sync"
)

// ResponseWriter records whether a response has started and with which
// status. A forwarded failure request uses a non-200 implicit status so a
// login page that only writes a body still answers 401 or 403.
type ResponseWriter struct {
	http.ResponseWriter

	mu      sync.Mutex
	status  int
	size    int64
	written bool
}

// NewResponseWriter wraps w with an implicit status of 200.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return newResponseWriterWithStatus(w, http.StatusOK)
}

func newResponseWriterWithStatus(w http.ResponseWriter, status int) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: status}
}

// begin reports whether this call started the response.
func (w *ResponseWriter) begin(code int) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written {
		return w.status, false
	}
	w.written = true
	if code != 0 {
		w.status = code
	}
	return w.status, true
}

// WriteHeader sends the status line. Later calls are ignored.
func (w *ResponseWriter) WriteHeader(code int) {
	if status, ok := w.begin(code); ok {
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if status, ok := w.begin(0); ok {
		w.ResponseWriter.WriteHeader(status)
	}

	n, err := w.ResponseWriter.Write(b)

	w.mu.Lock()
	w.size += int64(n)
	w.mu.Unlock()
	return n, err
}

// Status returns the status sent, or the implicit one if nothing was sent yet.
func (w *ResponseWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Size returns the number of body bytes written.
func (w *ResponseWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Written reports whether the response has started.
func (w *ResponseWriter) Written() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Flush implements http.Flusher when the wrapped writer does.
func (w *ResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker when the wrapped writer does.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
