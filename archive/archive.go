// Package archive implements the janitor described in SPEC_FULL.md section
// 2 item 9: it compresses batches of retired commit log records that the
// caller hands it into an S3 object, grounded on the teacher's
// aws_s3.Connect/NewManageBucket connection pattern. It does not read from
// or trim the commit log itself.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// Config names the S3-compatible endpoint the janitor archives to.
type Config struct {
	HostEndpointURL string
	Region          string
	Username        string
	Password        string
	Bucket          string
}

// Connect builds an s3.Client against an S3-compatible endpoint, following
// the teacher's aws_s3.Connect shape.
func Connect(cfg Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.HostEndpointURL)
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.Username, cfg.Password, "")
	})
}

// Janitor gzip-compresses batches of retired commit log records and
// uploads them as one object per batch, so an operator can trim the live
// commit log without losing the audit trail.
type Janitor struct {
	bucket   string
	uploader *manager.Uploader
}

// NewJanitor constructs a Janitor uploading to bucket via client.
func NewJanitor(client *s3.Client, bucket string) *Janitor {
	return &Janitor{bucket: bucket, uploader: manager.NewUploader(client)}
}

// Record is one retired commit log entry.
type Record struct {
	Cid     string
	Payload []byte
}

// Archive gzip-compresses records into a single object named key and
// uploads it to the janitor's bucket.
func (j *Janitor) Archive(ctx context.Context, key string, records []Record) error {
	compressed, err := compressRecords(records)
	if err != nil {
		return err
	}
	_, err = j.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(compressed),
	})
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return nil
}

// compressRecords gzip-encodes records as repeated "cid length\npayload\n"
// entries, isolated from Archive so the encoding can be tested without a
// live S3 endpoint.
func compressRecords(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	for _, r := range records {
		if _, err := fmt.Fprintf(gw, "%s %d\n", r.Cid, len(r.Payload)); err != nil {
			return nil, fmt.Errorf("archive: write header for %s: %w", r.Cid, err)
		}
		if _, err := gw.Write(r.Payload); err != nil {
			return nil, fmt.Errorf("archive: write payload for %s: %w", r.Cid, err)
		}
		if _, err := gw.Write([]byte("\n")); err != nil {
			return nil, fmt.Errorf("archive: write trailer for %s: %w", r.Cid, err)
		}
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("archive: close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}
