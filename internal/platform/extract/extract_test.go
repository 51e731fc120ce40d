package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("extracted text"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 3)
	text, err := c.Extract(context.Background(), "doc.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "extracted text" {
		t.Errorf("expected extracted text, got %q", text)
	}
}

func TestClient_Extract_PermanentFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("unsupported format"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 3)
	_, err := c.Extract(context.Background(), "doc.bin", []byte{0x00})

	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("permanent failure must not be retried, got %d calls", calls)
	}
}

func TestClient_Extract_RetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok after retries"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 3)
	text, err := c.Extract(context.Background(), "doc.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok after retries" {
		t.Errorf("unexpected text %q", text)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}
