// Package blob stores uploaded evidence in S3.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client     putObjectAPI
	bucket     string
	region     string
	publicBase string
}

// NewS3Store loads the default AWS credential chain for region.
// publicBase overrides the virtual-hosted bucket URL, e.g. a CDN origin.
func NewS3Store(ctx context.Context, bucket, region, publicBase string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Store(s3.NewFromConfig(cfg), bucket, region, publicBase), nil
}

func newS3Store(client putObjectAPI, bucket, region, publicBase string) *S3Store {
	return &S3Store{
		client:     client,
		bucket:     bucket,
		region:     region,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// UploadFile writes data to folder/filename and returns its public URL.
func (s *S3Store) UploadFile(ctx context.Context, data []byte, folder, filename string) (string, error) {
	key := path.Join(strings.Trim(folder, "/"), filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(filename, data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.URL(key), nil
}

func (s *S3Store) URL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func contentType(filename string, data []byte) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}
