package deploy

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"yoyaku/internal/config"
)

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads pages to a bucket behind a public base URL.
type S3 struct {
	client       S3API
	bucket       string
	prefix       string
	publicURL    string
	proxyURL     string
	cacheControl string
}

func NewS3(client S3API, cfg config.DeployConfig) *S3 {
	public := cfg.S3.PublicURL
	if public == "" {
		public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3.Bucket, cfg.S3.Region)
		if cfg.S3.Region == "" {
			public = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.S3.Bucket)
		}
	}
	cacheControl := cfg.S3.CacheControl
	if cacheControl == "" {
		cacheControl = "no-cache"
	}
	return &S3{
		client:       client,
		bucket:       cfg.S3.Bucket,
		prefix:       strings.Trim(cfg.S3.Prefix, "/"),
		publicURL:    public,
		proxyURL:     cfg.S3.ProxyURL,
		cacheControl: cacheControl,
	}
}

// NewS3FromEnv builds the client from the default AWS credential chain.
func NewS3FromEnv(ctx context.Context, cfg config.DeployConfig) (*S3, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(cfg.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3(s3.NewFromConfig(awsCfg), cfg), nil
}

func (d *S3) objectKey(key string) string {
	if d.prefix == "" {
		return key
	}
	return path.Join(d.prefix, key)
}

func (d *S3) Deploy(ctx context.Context, key string, body []byte) (Result, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	objKey := d.objectKey(key)

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(objKey),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(ContentType),
		CacheControl: aws.String(d.cacheControl),
	})
	if err != nil {
		return Result{}, fmt.Errorf("s3 put %s: %w", objKey, err)
	}

	return Result{
		Key:       objKey,
		PublicURL: joinURL(d.publicURL, objKey),
		ProxyURL:  joinURL(d.proxyURL, objKey),
	}, nil
}
