package s3client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// FakeBucket serves an empty in-memory bucket over HTTP for the life of the
// test and returns the Config that reaches it, so callers can go through New
// (or the PULSECHECK_S3 environment) exactly as a real run would.
func FakeBucket(t testing.TB, bucketName string) Config {
	t.Helper()
	ts := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(ts.Close)

	cfg := Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		UsePathStyle:    true,
	}
	c := TestClientFor(t, cfg)
	if _, err := c.s3Client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		t.Fatalf("create bucket %q: %v", bucketName, err)
	}
	return cfg
}

// TestClient returns a client for a fresh FakeBucket.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()
	return TestClientFor(t, FakeBucket(t, bucketName))
}

// TestClientFor builds a client from cfg, failing the test on error.
func TestClientFor(t testing.TB, cfg Config) *Client {
	t.Helper()
	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("s3client.New: %v", err)
	}
	return c
}
