package corpus

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
)

// ObjectGetter is the subset of *s3.Client used by S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source streams objects from one bucket in the order of Keys.
type S3Source struct {
	Client ObjectGetter
	Bucket string
	Keys   []string
}

func (s S3Source) Name() string {
	return fmt.Sprintf("s3://%s/{%s}", s.Bucket, strings.Join(s.Keys, ","))
}

func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if len(s.Keys) == 0 {
		return nil, fmt.Errorf("no object keys configured")
	}
	parts := make([]part, len(s.Keys))
	for i, key := range s.Keys {
		parts[i] = part{
			name: "s3://" + s.Bucket + "/" + key,
			open: func(ctx context.Context) (io.ReadCloser, error) {
				out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
					Bucket: aws.String(s.Bucket),
					Key:    aws.String(key),
				})
				if err != nil {
					return nil, err
				}
				return maybeGunzip(key, out.Body)
			},
		}
	}
	return newConcat(ctx, parts), nil
}

// NewS3Client builds an S3 client from config. A custom endpoint targets an
// S3-compatible store; empty credentials use the default AWS chain.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// FromConfig builds the configured source. Non-empty paths override
// corpus.paths; for the s3 source they are object keys.
func FromConfig(ctx context.Context, cfg config.CorpusConfig, paths []string) (Source, error) {
	if len(paths) == 0 {
		paths = cfg.Paths
	}
	switch cfg.Source {
	case config.SourceFile, "":
		return FileSource{Patterns: paths}, nil
	case config.SourceS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return S3Source{Client: client, Bucket: cfg.S3.Bucket, Keys: paths}, nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}
