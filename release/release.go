// Package release implements the release-host client.
//
// The release host stores the tagged, user-downloadable release and its
// attached assets. slipway only needs one operation from it: attach an
// asset to a tag, overwriting any previous asset of the same name so that
// re-running a pipeline for the same tag never fails on a pre-existing
// asset.
//
// Transport failures and 5xx responses are retried under the configured
// bounded policy; 4xx responses are terminal.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/slipway-dev/slipway/iox"
	"github.com/slipway-dev/slipway/retry"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 60 * time.Second

// Config configures the release-host client.
type Config struct {
	// BaseURL is the release-host API root (required).
	BaseURL string
	// Token is the bearer credential for asset uploads.
	Token string
	// Timeout is the per-request timeout (default 60s; uploads are large).
	Timeout time.Duration
	// Retry bounds retries for transient failures.
	Retry retry.Policy
}

// Client attaches assets to tagged releases.
type Client struct {
	config Config
	client *http.Client
}

// New creates a release-host client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("release host requires a base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StatusError is returned for non-2xx responses.
// The code lets callers distinguish retriable (5xx) from terminal (4xx).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// AttachAsset uploads the file at path as an asset of the release for tag,
// under the file's base name. With overwrite, a conflicting existing asset
// is deleted and the upload repeated; without it, a conflict is an error.
func (c *Client) AttachAsset(ctx context.Context, tag, path string, overwrite bool) error {
	name := filepath.Base(path)

	op := func(ctx context.Context) error {
		err := c.upload(ctx, tag, name, path)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			// Conflict with an existing asset: overwrite means delete + retry once.
			if statusErr.Code == http.StatusConflict && overwrite {
				if delErr := c.deleteAsset(ctx, tag, name); delErr != nil {
					return fmt.Errorf("delete existing asset %s: %w", name, delErr)
				}
				return c.upload(ctx, tag, name, path)
			}
			if statusErr.Code >= 400 && statusErr.Code < 500 {
				return retry.Terminal(err)
			}
		}
		return err
	}

	if err := retry.Do(ctx, c.config.Retry, op); err != nil {
		return fmt.Errorf("attach %s to %s: %w", name, tag, err)
	}
	return nil
}

// assetURL builds the asset endpoint for a tag and asset name.
func (c *Client) assetURL(tag, name string) string {
	return fmt.Sprintf("%s/releases/%s/assets/%s",
		c.config.BaseURL, url.PathEscape(tag), url.PathEscape(name))
}

// upload performs a single asset PUT, streaming the file body.
func (c *Client) upload(ctx context.Context, tag, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return retry.Terminal(fmt.Errorf("open asset: %w", err))
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return retry.Terminal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.assetURL(tag, name), f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	return c.do(req)
}

// deleteAsset removes an existing asset. 404 is treated as already gone.
func (c *Client) deleteAsset(ctx context.Context, tag, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.assetURL(tag, name), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	err = c.do(req)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil
	}
	return err
}

// authorize sets the bearer credential when configured.
func (c *Client) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// do executes a request and returns nil on 2xx.
func (c *Client) do(req *http.Request) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
