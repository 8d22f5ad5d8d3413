// Package httprepo fetches artifact files from http:// and https://
// repositories using conditional GET requests.
package httprepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

// DefaultBackoff retries transient failures three more times.
var DefaultBackoff = wait.Backoff{
	Duration: 200 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Steps:    4,
}

type Option func(*Transport)

func WithClient(c *http.Client) Option { return func(t *Transport) { t.client = c } }

func WithBackoff(b wait.Backoff) Option { return func(t *Transport) { t.backoff = b } }

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option { return func(t *Transport) { t.userAgent = ua } }

type Transport struct {
	client    *http.Client
	backoff   wait.Backoff
	userAgent string
}

func New(opts ...Option) *Transport {
	t := &Transport{
		client:    &http.Client{Timeout: 5 * time.Minute},
		backoff:   DefaultBackoff,
		userAgent: "depresolve",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ repository.Transport = (*Transport)(nil)

// retryable marks a failure worth another attempt.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

func (t *Transport) Fetch(ctx context.Context, c artifact.Coordinate, remote repository.Remote, w io.Writer) error {
	_, err := t.FetchIfNewer(ctx, c, remote, time.Time{}, w)
	return err
}

// FetchIfNewer sends If-Modified-Since when since is set. A 304 reports the
// file unchanged. 5xx responses and connection errors are retried.
func (t *Transport) FetchIfNewer(ctx context.Context, c artifact.Coordinate, remote repository.Remote, since time.Time, w io.Writer) (bool, error) {
	target := strings.TrimSuffix(remote.URL, "/") + "/" + c.Path()
	logger := log.FromContext(ctx).WithValues("artifact", c.String(), "repository", remote.ID)

	var (
		body     bytes.Buffer
		modified bool
		lastErr  error
		attempt  int
	)
	err := wait.ExponentialBackoffWithContext(ctx, t.backoff, func(ctx context.Context) (bool, error) {
		attempt++
		body.Reset()
		changed, err := t.get(ctx, target, since, &body)
		if err == nil {
			modified = changed
			return true, nil
		}
		var r retryable
		if !errors.As(err, &r) {
			return false, err
		}
		lastErr = r.err
		logger.V(2).Info("retrying artifact download", "attempt", attempt, "error", r.err.Error())
		return false, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("%s in %s: %w", c, remote.ID, err)
	case lastErr != nil && ctx.Err() == nil:
		return false, fmt.Errorf("get %s after %d attempts: %w", target, attempt, lastErr)
	default:
		return false, fmt.Errorf("get %s: %w", target, err)
	}

	if !modified {
		return false, nil
	}
	if _, err := io.Copy(w, &body); err != nil {
		return false, fmt.Errorf("write %s: %w", c, err)
	}
	return true, nil
}

func (t *Transport) get(ctx context.Context, target string, since time.Time, w io.Writer) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if !since.IsZero() {
		req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, retryable{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if _, err := io.Copy(w, resp.Body); err != nil {
			return false, retryable{fmt.Errorf("read body: %w", err)}
		}
		return true, nil
	case resp.StatusCode == http.StatusNotModified:
		return false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, repository.ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return false, retryable{fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return false, fmt.Errorf("unexpected status %s", resp.Status)
}
