// Package deploy writes rendered booking pages to their hosting target.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yoyaku/internal/config"
)

// ContentType of every deployed page.
const ContentType = "text/html; charset=utf-8"

var ErrInvalidKey = errors.New("invalid object key")

// Result locates a deployed page. ProxyURL is set when the page is also served
// through a proxy in front of the bucket.
type Result struct {
	Key       string
	PublicURL string
	ProxyURL  string
}

// Deployer stores one page under key.
type Deployer interface {
	Deploy(ctx context.Context, key string, body []byte) (Result, error)
}

// Key returns the object key of form id.
func Key(formID string) (string, error) {
	if formID == "" || formID == "." || formID == ".." || strings.ContainsAny(formID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, formID)
	}
	return formID + ".html", nil
}

func joinURL(base, key string) string {
	if base == "" {
		return ""
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

// New builds the deployer selected by cfg.Deploy.Target, wrapped with retries.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Deployer, error) {
	var d Deployer
	switch cfg.Deploy.Target {
	case config.TargetS3:
		s3d, err := NewS3FromEnv(ctx, cfg.Deploy)
		if err != nil {
			return nil, err
		}
		d = s3d
	case config.TargetLocal, "":
		d = &Local{Dir: cfg.DeployDir(), BaseURL: cfg.Deploy.Local.BaseURL}
	default:
		return nil, fmt.Errorf("unknown deploy target %q", cfg.Deploy.Target)
	}
	retry := RetryConfig{MaxRetries: cfg.DeployRetries(), Backoff: cfg.DeployBackoff()}
	return WithRetry(d, retry, logger), nil
}

// Local writes pages into a directory served by a static file server.
type Local struct {
	Dir     string
	BaseURL string
}

func (l *Local) Deploy(_ context.Context, key string, body []byte) (Result, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create deploy directory: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial page.
	tmp, err := os.CreateTemp(l.Dir, ".deploy-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return Result{}, fmt.Errorf("chmod %s: %w", key, err)
	}

	path := filepath.Join(l.Dir, key)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Result{}, fmt.Errorf("rename %s: %w", key, err)
	}

	public := joinURL(l.BaseURL, key)
	if public == "" {
		public = "file://" + filepath.ToSlash(path)
	}
	return Result{Key: key, PublicURL: public}, nil
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Backoff: 500 * time.Millisecond}
}

type retrying struct {
	next   Deployer
	config RetryConfig
	logger *zerolog.Logger
}

// WithRetry retries failed deploys with linear backoff. Invalid keys and
// context cancellation are not retried.
func WithRetry(next Deployer, cfg RetryConfig, logger *zerolog.Logger) Deployer {
	return &retrying{next: next, config: cfg, logger: logger}
}

func (r *retrying) Deploy(ctx context.Context, key string, body []byte) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		res, err := r.next.Deploy(ctx, key, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidKey) || ctx.Err() != nil {
			break
		}
		if attempt == r.config.MaxRetries {
			break
		}

		wait := r.config.Backoff * time.Duration(attempt+1)
		r.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt+1).Dur("wait", wait).Msg("Deploy failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{}, fmt.Errorf("deploy %s: %w", key, lastErr)
}
