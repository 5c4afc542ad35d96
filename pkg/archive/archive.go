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
	"github.com/golang/snappy"

	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/logging"
)

// Config locates the snapshot archive bucket. Endpoint is for S3-compatible
// stores; leave empty for AWS.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Exporter writes finished snapshots to object storage as
// snappy-compressed JSON, one object per snapshot.
type Exporter struct {
	client *s3.Client
	bucket string
	logger logging.Logger
}

// NewExporter builds an S3 client and returns a snapshot exporter.
func NewExporter(ctx context.Context, cfg Config, logger logging.Logger) (*Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &Exporter{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Key returns the object key for a snapshot.
func Key(snap *graph.Snapshot) string {
	return fmt.Sprintf("tenants/%s/snapshots/%s.json.sz", snap.TenantID, snap.ID)
}

// Encode serializes and compresses a snapshot. Split out from Export so the
// round-trip is testable without object storage.
func Encode(snap *graph.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*graph.Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	snap := &graph.Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Export writes one snapshot to the bucket.
func (e *Exporter) Export(ctx context.Context, snap *graph.Snapshot) (string, error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}

	key := Key(snap)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	e.logger.Info("snapshot archived",
		logging.TenantID(snap.TenantID),
		logging.SnapshotID(snap.ID),
		logging.Int("bytes", len(data)))
	return key, nil
}

// Fetch reads one archived snapshot back.
func (e *Exporter) Fetch(ctx context.Context, key string) (*graph.Snapshot, error) {
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}
	return Decode(buf.Bytes())
}
