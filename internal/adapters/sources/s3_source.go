package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// ObjectGetter is the slice of the S3 API the source needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads reference files from a bucket, optionally under a prefix
type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Source creates a bucket-backed reference source
func NewS3Source(client ObjectGetter, bucket, prefix string) providers.ReferenceSource {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Open streams the object named prefix+name
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.prefix + name
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("reference object s3://%s/%s not found", s.bucket, key))
		}
		return nil, apperrors.NewExternalError(fmt.Sprintf("failed to get s3://%s/%s", s.bucket, key), err)
	}
	return out.Body, nil
}

// Describe names the source in logs
func (s *S3Source) Describe() string {
	return "s3://" + s.bucket + "/" + s.prefix
}
