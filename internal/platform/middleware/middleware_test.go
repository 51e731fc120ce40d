package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := RequestID()
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Error("expected a generated request id")
	}
	if rec.Header().Get("X-Request-ID") != rid {
		t.Error("expected request id echoed in response header")
	}
}

func TestRequestID_HonorsIncoming(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "incoming-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := RequestID()
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rid, _ := c.Get("request_id").(string); rid != "incoming-id" {
		t.Errorf("expected incoming request id to be honored, got %q", rid)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	logger := zerolog.Nop()
	mw := Recovery(logger)
	handler := mw(func(c echo.Context) error {
		panic("boom")
	})

	err := handler(c)
	if err == nil {
		t.Fatal("expected an error from recovered panic")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 HTTPError, got %v", err)
	}
}

func TestBodyLimit_RejectsLargeBody(t *testing.T) {
	e := echo.New()
	body := strings.NewReader(strings.Repeat("x", 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", body)
	req.ContentLength = 2048
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := BodyLimit("1K", "10M")
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 HTTPError, got %v", err)
	}
}

func TestBodyLimit_UploadPathGetsLargerLimit(t *testing.T) {
	e := echo.New()
	body := strings.NewReader(strings.Repeat("x", 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.ContentLength = 2048
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := BodyLimit("1K", "10M")
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Errorf("expected upload path to accept 2K body, got %v", err)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1K", 1 << 10},
		{"10M", 10 << 20},
		{"1G", 1 << 30},
		{"512", 512},
		{"", 1 << 20},
		{"garbage", 1 << 20},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.in); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRequestTimeout_SkipsChatPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/x/chat", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := RequestTimeout(time.Nanosecond)
	handler := mw(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on chat path")
		}
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
