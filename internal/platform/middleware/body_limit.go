package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit returns middleware that limits the maximum request body size.
// defaultLimit applies to most endpoints while uploadLimit applies to batch
// submissions (scanned documents can be significantly larger).
//
// Limits are specified as human-readable strings: "1M" for 1 megabyte,
// "10M" for 10 megabytes, etc. Supported suffixes are K (kilobytes),
// M (megabytes), and G (gigabytes). A bare number is treated as bytes.
func BodyLimit(defaultLimit string, uploadLimit string) echo.MiddlewareFunc {
	defaultBytes := parseLimit(defaultLimit)
	uploadBytes := parseLimit(uploadLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Body == nil || c.Request().Body == http.NoBody {
				return next(c)
			}

			limit := defaultBytes
			path := c.Request().URL.Path
			if c.Request().Method == http.MethodPost && strings.HasSuffix(path, "/batches") {
				limit = uploadBytes
			}

			if c.Request().ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
			}

			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, limit)
			return next(c)
		}
	}
}

// parseLimit converts a human-readable size string to bytes.
// Unparseable input falls back to 1 megabyte.
func parseLimit(limit string) int64 {
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" {
		return 1 << 20
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(limit, "K"):
		mult = 1 << 10
		limit = strings.TrimSuffix(limit, "K")
	case strings.HasSuffix(limit, "M"):
		mult = 1 << 20
		limit = strings.TrimSuffix(limit, "M")
	case strings.HasSuffix(limit, "G"):
		mult = 1 << 30
		limit = strings.TrimSuffix(limit, "G")
	}

	n, err := strconv.ParseInt(limit, 10, 64)
	if err != nil || n <= 0 {
		return 1 << 20
	}
	return n * mult
}
