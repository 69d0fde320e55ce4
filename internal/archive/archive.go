// Package archive ships pruned execution-log entries to S3-compatible
// object storage as gzipped JSON lines.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/dispatchlog"
)

// objectPutter is the slice of the S3 client the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver implements dispatchlog.Archiver over an S3 bucket. Each batch
// becomes one object keyed by the oldest entry's timestamp.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

var _ dispatchlog.Archiver = (*S3Archiver)(nil)

// New creates an archiver from config.
func New(ctx context.Context, cfg *config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.S3.ForcePathStyle
		},
	}
	if cfg.S3.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		})
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive uploads the batch. An error means nothing may be deleted; the
// caller retries the whole batch later.
func (a *S3Archiver) Archive(ctx context.Context, entries []*dispatchlog.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	body, err := encodeBatch(entries)
	if err != nil {
		return err
	}

	key := a.objectKey(entries)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("uploading archive object: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int("entries", len(entries)).
		Int("bytes", len(body)).
		Msg("Archived execution log batch")

	return nil
}

// objectKey derives a date-partitioned key from the oldest entry, so
// archived batches list chronologically.
func (a *S3Archiver) objectKey(entries []*dispatchlog.Entry) string {
	ts := entries[0].Timestamp.UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s.jsonl.gz", ts.Year(), ts.Month(), ts.Day(), uuid.New().String())
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

func encodeBatch(entries []*dispatchlog.Entry) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	enc := json.NewEncoder(gz)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			gz.Close()
			return nil, fmt.Errorf("encoding archive entry: %w", err)
		}
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}
