package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Config carries the connection parameters for an S3-compatible backend
// (AWS S3 itself, or a self-hosted MinIO endpoint).
type S3Config struct {
	Region         string
	Bucket         string
	BaseEndpoint   string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Store implements Store against an S3-compatible object store by issuing
// PutObject/GetObject/DeleteObject/ListObjectsV2 calls directly, since the
// server proxies ciphertext bytes itself rather than handing out presigned
// URLs to the browser.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3Store from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads body under path.
func (s *S3Store) Put(ctx context.Context, path string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}

// PutIfAbsent writes body to path only if no object already exists there.
// It issues a HeadObject check before the PutObject call rather than
// relying on a conditional-write header, so it works against any
// S3-compatible backend, not only ones that support IfNoneMatch.
func (s *S3Store) PutIfAbsent(ctx context.Context, path string, body io.Reader, size int64) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, err
	}
	if err := s.Put(ctx, path, body, size); err != nil {
		return false, err
	}
	return true, nil
}

// Get fetches the object at path.
func (s *S3Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Delete removes the object at path. A missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// DeletePrefix removes every object under prefix, paging through
// ListObjectsV2 as needed.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return err
		}
		for _, obj := range out.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil && !isNotFound(err) {
				return err
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		continuationToken = out.NextContinuationToken
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
