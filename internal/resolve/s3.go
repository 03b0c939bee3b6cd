package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/John-Robertt/chefboot-go/internal/model"
)

// ObjectGetter is the subset of *s3.Client used by S3.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads <Prefix><group>.json from Bucket.
type S3 struct {
	Client   ObjectGetter
	Bucket   string
	Prefix   string
	MaxBytes int64 // default 1 MiB
}

// S3ClientConfig describes an S3-compatible endpoint. Empty keys mean
// anonymous access.
type S3ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// Timeout bounds each request, body read included. Default 15s.
	Timeout time.Duration
}

func NewS3Client(cfg S3ClientConfig) *s3.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
		Credentials:  aws.AnonymousCredentials{},
		HTTPClient:   awshttp.NewBuildableClient().WithTimeout(timeout),
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s S3) Key(group string) string { return s.Prefix + group + ".json" }

func (s S3) Resolve(ctx context.Context, group string) (json.RawMessage, error) {
	if err := ValidGroup(group); err != nil {
		return nil, err
	}
	key := s.Key(group)
	location := fmt.Sprintf("s3://%s/%s", s.Bucket, key)

	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var re *Error
		switch {
		case isNoSuchKey(err):
			re = notFound(group, err)
		case isTimeout(err):
			re = newError(model.CodeFetchTimeout, group, "timed out fetching group object", err)
		default:
			re = newError(model.CodeFetchFailed, group, "failed to fetch group object", err)
		}
		re.AppError.URL = location
		return nil, re
	}
	defer out.Body.Close()

	limit := s.MaxBytes
	if limit <= 0 {
		limit = 1 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		re := newError(model.CodeFetchFailed, group, "failed to read group object", err)
		re.AppError.URL = location
		return nil, re
	}
	if int64(len(body)) > limit {
		re := newError(model.CodeTooLarge, group, fmt.Sprintf("group object too large (>%d bytes)", limit), nil)
		re.AppError.URL = location
		return nil, re
	}
	return json.RawMessage(body), nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || strings.EqualFold(code, "404")
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
