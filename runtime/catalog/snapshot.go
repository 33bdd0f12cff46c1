package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// Snapshot is the static registry file: {"components": [...]}.
type Snapshot struct {
	Components []metadata.ComponentMetadata `json:"components"`
}

// NewSnapshot builds a snapshot from registry records, sorted by path.
func NewSnapshot(components []*metadata.ComponentMetadata) Snapshot {
	s := Snapshot{Components: make([]metadata.ComponentMetadata, 0, len(components))}
	for _, c := range components {
		s.Components = append(s.Components, *c.Clone())
	}
	sortComponents(s.Components, SortByPath, SortAsc)
	return s
}

// ReadSnapshot decodes a snapshot and normalizes every record.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	kept := s.Components[:0]
	for _, c := range s.Components {
		if c.Path == "" {
			continue
		}
		c.Normalize()
		kept = append(kept, c)
	}
	s.Components = kept
	return s, nil
}

// Write encodes the snapshot as indented JSON.
func (s Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ObjectGetter is the part of the S3 client used to read snapshots.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectPutter is the part of the S3 client used to publish snapshots.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ParseS3Location splits s3://bucket/key. ok is false for other schemes.
func ParseS3Location(location string) (bucket, key string, ok bool) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

// NewS3Client creates an S3 client for region. Credentials come from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without
// them requests are sent unsigned, which works for public buckets.
// AWS_ENDPOINT_URL overrides the endpoint for S3 compatible stores.
func NewS3Client(region string) *s3.Client {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{Region: region}

	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "Environment",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// UploadSnapshot writes the snapshot to s3://bucket/key.
func UploadSnapshot(ctx context.Context, client ObjectPutter, location string, s Snapshot) error {
	bucket, key, ok := ParseS3Location(location)
	if !ok {
		return fmt.Errorf("not an s3 location: %q", location)
	}
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return err
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to %s: %w", location, err)
	}
	return nil
}
