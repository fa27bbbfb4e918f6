package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type R2Config struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	// Endpoint overrides the account endpoint, e.g. for an S3-compatible test server.
	Endpoint string
	// PublicURL is a bucket domain. Without it URL presigns a GET.
	PublicURL  string
	PresignTTL time.Duration
}

// R2Source reads media from a Cloudflare R2 bucket over the S3 API.
type R2Source struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     R2Config
}

func NewR2Source(ctx context.Context, rc R2Config) (*R2Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(rc.AccessKey, rc.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	endpoint := rc.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", rc.AccountID)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = rc.Endpoint != ""
	})

	if rc.PresignTTL <= 0 {
		rc.PresignTTL = time.Hour
	}
	rc.PublicURL = strings.TrimRight(rc.PublicURL, "/")

	return &R2Source{client: client, presign: s3.NewPresignClient(client), cfg: rc}, nil
}

func (s *R2Source) Open(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("media key %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get media %q: %w", key, err)
	}

	return newObject(out.Body, aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType)), nil
}

func (s *R2Source) URL(ctx context.Context, key string) (string, error) {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL + "/" + strings.TrimLeft(key, "/"), nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign media %q: %w", key, err)
	}
	return req.URL, nil
}
