package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to fetch sentence documents.
// *s3.Client satisfies it.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Location is a parsed s3://bucket/prefix data directory.
type S3Location struct {
	Bucket string
	Prefix string
}

// ParseS3Location parses an s3:// URL. ok is false for anything else.
func ParseS3Location(raw string) (loc S3Location, ok bool) {
	if !strings.HasPrefix(raw, "s3://") {
		return S3Location{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return S3Location{}, false
	}
	return S3Location{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, true
}

// Key returns the object key of the document for ontology.
func (l S3Location) Key(ontology string) string {
	return path.Join(l.Prefix, ontology+".yaml")
}

// LoadS3 fetches the YAML document of ontology from loc and returns an
// in-memory store holding it.
func LoadS3(ctx context.Context, client S3API, loc S3Location, ontology string) (*MemoryStore, error) {
	key := loc.Key(ontology)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("store: s3 get s3://%s/%s: %w", loc.Bucket, key, err)
	}
	defer out.Body.Close()

	st, err := LoadDocument(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 object s3://%s/%s: %w", loc.Bucket, key, err)
	}
	return st, nil
}

// NewS3Client builds an S3 client for region. Credentials are taken from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without
// them requests are sent anonymously. A non-empty endpoint switches to
// path-style addressing for S3-compatible servers.
func NewS3Client(region, endpoint string) *s3.Client {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{Region: region}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
