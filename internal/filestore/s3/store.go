package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/models"
)

// objectAPI is the part of the S3 client the store uses
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store treats the drive id as a bucket and the item id as an object key.
type Store struct {
	client objectAPI
	prefix string
}

var _ filestore.Store = (*Store)(nil)

// New creates an S3-backed document store using the default credential chain.
func New(ctx context.Context, region, prefix string) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Store{client: s3.NewFromConfig(cfg), prefix: normalizePrefix(prefix)}, nil
}

func (s *Store) Stat(ctx context.Context, bucket, key string) (models.DocumentInfo, error) {
	objectKey := applyPrefix(s.prefix, key)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return models.DocumentInfo{}, mapErr(fmt.Errorf("s3 head object bucket=%s key=%s: %w", bucket, objectKey, err))
	}
	return models.DocumentInfo{
		Name:     path.Base(objectKey),
		MimeType: aws.ToString(out.ContentType),
		Size:     aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	objectKey := applyPrefix(s.prefix, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, mapErr(fmt.Errorf("s3 get object bucket=%s key=%s: %w", bucket, objectKey, err))
	}
	return out.Body, nil
}

func mapErr(err error) error {
	var (
		noKey    *s3types.NoSuchKey
		notFound *s3types.NotFound
		noBucket *s3types.NoSuchBucket
	)
	if errors.As(err, &noKey) || errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %w", filestore.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%w: %w", filestore.ErrNotFound, err)
		}
	}
	return err
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}
