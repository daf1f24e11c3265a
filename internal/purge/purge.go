// Package purge invalidates cached copies of freshly written metadata files.
package purge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/version"
)

// Invalidator drops cached copies of written files. Paths arrive sorted, once per build.
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) error
}

var errBadHTTPStatus = errors.New("unexpected http status")

// HTTP sends one request per file to <BaseURL>/<filename>.
type HTTP struct {
	BaseURL string
	// Method is the HTTP verb, PURGE when empty.
	Method string
	Client *http.Client
}

// NewHTTP returns an HTTP invalidator using the default client.
func NewHTTP(baseURL, method string) *HTTP {
	return &HTTP{BaseURL: baseURL, Method: method, Client: http.DefaultClient}
}

// Invalidate purges every path and returns the joined failures.
func (h *HTTP) Invalidate(ctx context.Context, paths []string) error {
	var errs []error

	for _, p := range paths {
		if err := h.purge(ctx, filepath.Base(p)); err != nil {
			logger.ErrorKV(ctx, "Cache purge failed", "path", p, "error", err)
			errs = append(errs, err)

			continue
		}

		logger.DebugKV(ctx, "Cache purged", "path", p)
	}

	return errors.Join(errs...)
}

func (h *HTTP) purge(ctx context.Context, filename string) error {
	target, err := url.Parse(h.BaseURL)
	if err != nil {
		return fmt.Errorf("parse purge base URL: %w", err)
	}

	target.Path = path.Join(target.Path, filename)
	finalURL := target.String()

	method := h.Method
	if method == "" {
		method = "PURGE"
	}

	req, err := http.NewRequestWithContext(ctx, method, finalURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build purge request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("purge %s: %w", finalURL, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return nil
}

// Log only records the paths that would be purged.
type Log struct{}

// Invalidate logs each path.
func (Log) Invalidate(ctx context.Context, paths []string) error {
	for _, p := range paths {
		logger.InfoKV(ctx, "Invalidating cached file", "path", p)
	}

	return nil
}

// New returns an HTTP invalidator for a configured base URL, or Log otherwise.
func New(baseURL, method string) Invalidator {
	if baseURL == "" {
		return Log{}
	}

	return NewHTTP(baseURL, method)
}
