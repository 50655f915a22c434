package deploy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/config"
)

// mockS3Client records PutObject calls for testing.
type mockS3Client struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, _ := io.ReadAll(input.Body)
	m.inputs = append(m.inputs, input)
	m.bodies = append(m.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	k, err := Key("aoyama")
	require.NoError(t, err)
	assert.Equal(t, "aoyama.html", k)

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := Key(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

func TestLocalDeploy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	d := &Local{Dir: dir, BaseURL: "https://forms.example.com/"}

	res, err := d.Deploy(context.Background(), "aoyama.html", []byte("<!DOCTYPE html>"))
	require.NoError(t, err)
	assert.Equal(t, "https://forms.example.com/aoyama.html", res.PublicURL)
	assert.Empty(t, res.ProxyURL)

	data, err := os.ReadFile(filepath.Join(dir, "aoyama.html"))
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html>", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = d.Deploy(context.Background(), "../escape.html", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalDeployWithoutBaseURL(t *testing.T) {
	dir := t.TempDir()
	res, err := (&Local{Dir: dir}).Deploy(context.Background(), "a.html", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "a.html")), res.PublicURL)
}

func TestS3Deploy(t *testing.T) {
	mock := &mockS3Client{}
	var cfg config.DeployConfig
	cfg.S3.Bucket = "forms-bucket"
	cfg.S3.Region = "ap-northeast-1"
	cfg.S3.Prefix = "/salons/"
	cfg.S3.ProxyURL = "https://book.example.jp"

	res, err := NewS3(mock, cfg).Deploy(context.Background(), "サロン.html", []byte("<html>"))
	require.NoError(t, err)

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, "forms-bucket", *in.Bucket)
	assert.Equal(t, "salons/サロン.html", *in.Key)
	assert.Equal(t, ContentType, *in.ContentType)
	assert.Equal(t, "no-cache", *in.CacheControl)
	assert.Equal(t, "<html>", string(mock.bodies[0]))

	assert.Equal(t, "salons/サロン.html", res.Key)
	assert.Equal(t, "https://forms-bucket.s3.ap-northeast-1.amazonaws.com/salons/%E3%82%B5%E3%83%AD%E3%83%B3.html", res.PublicURL)
	assert.Equal(t, "https://book.example.jp/salons/%E3%82%B5%E3%83%AD%E3%83%B3.html", res.ProxyURL)
}

func TestS3DeployError(t *testing.T) {
	mock := &mockS3Client{err: errors.New("AccessDenied")}
	var cfg config.DeployConfig
	cfg.S3.Bucket = "b"
	_, err := NewS3(mock, cfg).Deploy(context.Background(), "a.html", nil)
	assert.ErrorContains(t, err, "AccessDenied")
}

type flakyDeployer struct {
	failures int
	calls    int
	err      error
}

func (f *flakyDeployer) Deploy(_ context.Context, key string, _ []byte) (Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return Result{}, f.err
	}
	return Result{Key: key, PublicURL: "https://example.com/" + key}, nil
}

func TestWithRetry(t *testing.T) {
	logger := zerolog.New(io.Discard)
	retry := RetryConfig{MaxRetries: 2, Backoff: time.Millisecond}

	flaky := &flakyDeployer{failures: 2, err: errors.New("503 Slow Down")}
	res, err := WithRetry(flaky, retry, &logger).Deploy(context.Background(), "a.html", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, "https://example.com/a.html", res.PublicURL)

	down := &flakyDeployer{failures: 10, err: errors.New("503 Slow Down")}
	_, err = WithRetry(down, retry, &logger).Deploy(context.Background(), "a.html", nil)
	assert.ErrorContains(t, err, "deploy a.html: 503 Slow Down")
	assert.Equal(t, 3, down.calls)

	invalid := &flakyDeployer{failures: 10, err: ErrInvalidKey}
	_, err = WithRetry(invalid, retry, &logger).Deploy(context.Background(), "a.html", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 1, invalid.calls)
}

func TestNewLocalTarget(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{}
	cfg.Deploy.Target = config.TargetLocal
	cfg.Deploy.Local.Dir = t.TempDir()

	d, err := New(context.Background(), cfg, &logger)
	require.NoError(t, err)
	_, err = d.Deploy(context.Background(), "a.html", []byte("x"))
	assert.NoError(t, err)

	cfg.Deploy.Target = "ftp"
	_, err = New(context.Background(), cfg, &logger)
	assert.Error(t, err)
}
