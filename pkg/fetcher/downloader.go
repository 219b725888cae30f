package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/vodsnap/vodsnap/pkg/errors"
	"github.com/vodsnap/vodsnap/pkg/logger"
)

const (
	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of attempts per item.
	DefaultRetries = 3

	retryDelay = 100 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// Timeout is the per-attempt timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of attempts per item. Defaults to DefaultRetries.
	Retries int
	// RateLimit caps download starts per second across all workers.
	// Zero means unlimited.
	RateLimit float64
	// UserAgent is sent on every request when non-empty.
	UserAgent string
	// Logger is used for attempt-level logging. Defaults to the zerolog
	// logger.
	Logger logger.Logger
}

// Client downloads manifests, keys and segments over HTTP.
// Create instances using New().
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	options Options
}

// New creates a Client with the provided options, filling in defaults.
func New(options Options) *Client {
	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Retries == 0 {
		options.Retries = DefaultRetries
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}

	var limiter *rate.Limiter
	if options.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RateLimit), 1)
	}

	return &Client{
		client:  &http.Client{},
		limiter: limiter,
		options: options,
	}
}

// FetchText retrieves a playlist body. This is a one-shot request with no
// retry: the manifest URL embeds token/signature state that a retry could
// not refresh anyway. Transport errors and non-2xx responses both surface
// as NetworkError.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.NetworkError, "failed to create manifest request", errors.ErrManifestRequest)
	}
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.NetworkError, "manifest request failed", errors.ErrManifestRequest)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New(errors.NetworkError, "manifest request failed", fmt.Sprintf("status: %s", resp.Status), errors.ErrManifestStatus)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.NetworkError, "failed to read manifest body", errors.ErrManifestRead)
	}
	return string(body), nil
}

// DownloadFile fetches url into path, retrying up to the configured attempt
// count. Every attempt rewrites the destination from scratch: the body is
// written to a temporary name and renamed into place only when complete, so
// path is either absent or a fully written file. Exhausting retries returns
// a FetchError wrapping the last attempt's error.
func (c *Client) DownloadFile(ctx context.Context, url, path string) error {
	var lastErr error

	for attempt := 1; attempt <= c.options.Retries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, errors.FetchError, "download canceled", errors.ErrFetchRequest)
			}
		}

		c.options.Logger.Debug("Downloading file", "fetcher", map[string]interface{}{
			"url":     url,
			"path":    path,
			"attempt": attempt,
		})

		lastErr = c.downloadOnce(ctx, url, path)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			// The caller aborted; retrying would only mask the cancellation.
			break
		}

		c.options.Logger.Warn("Download attempt failed", "fetcher", map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		time.Sleep(retryDelay)
	}

	return errors.Wrap(lastErr, errors.FetchError,
		fmt.Sprintf("download failed after %d attempts", c.options.Retries), errors.ErrFetchExhausted)
}

// downloadOnce performs a single attempt with its own timeout.
func (c *Client) downloadOnce(ctx context.Context, url, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.FetchError, "failed to create request", errors.ErrFetchRequest)
	}
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.FetchError, "request failed", errors.ErrFetchRequest)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.FetchError, "request failed", fmt.Sprintf("status: %s", resp.Status), errors.ErrFetchStatus)
	}

	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errors.SystemError, "failed to create file", errors.ErrFetchWrite)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Wrap(err, errors.FetchError, "failed to write file", errors.ErrFetchWrite)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.SystemError, "failed to close file", errors.ErrFetchWrite)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.SystemError, "failed to finalize file", errors.ErrFetchWrite)
	}
	return nil
}
