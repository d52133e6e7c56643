// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/oops"
)

// R2Config holds the Cloudflare R2 bucket settings.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// CDNBaseURL prefixes returned object URLs. Defaults to the account endpoint.
	CDNBaseURL string
}

// objectPutter is the part of the S3 client R2Storage uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Storage uploads assets to an R2 bucket and returns public CDN URLs.
type R2Storage struct {
	client  objectPutter
	bucket  string
	baseURL string
}

func r2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

func NewR2Storage(ctx context.Context, cfg R2Config) (*R2Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, oops.Code("R2_CONFIG_FAILED").Wrapf(err, "failed to load R2 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r2Endpoint(cfg.AccountID))
	})
	return newR2Storage(client, cfg), nil
}

func newR2Storage(client objectPutter, cfg R2Config) *R2Storage {
	base := cfg.CDNBaseURL
	if base == "" {
		base = r2Endpoint(cfg.AccountID)
	}
	return &R2Storage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
	}
}

// Upload puts data under key, overwriting any existing object.
func (r *R2Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", oops.Code("R2_UPLOAD_FAILED").With("key", key).Wrapf(err, "failed to upload to R2")
	}
	return fmt.Sprintf("%s/%s", r.baseURL, key), nil
}
