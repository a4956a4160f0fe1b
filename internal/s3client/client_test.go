package s3client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_PutGetList(t *testing.T) {
	client := TestClient(t, "artifacts")
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "runs/r1/learn-top_error.png", []byte("png-1"), "image/png"))
	require.NoError(t, client.PutObject(ctx, "runs/r1/learn-top_page.png", []byte("png-2"), "image/png"))
	require.NoError(t, client.PutObject(ctx, "runs/r2/other.png", []byte("png-3"), "image/png"))

	data, err := client.GetObject(ctx, "runs/r1/learn-top_error.png")
	require.NoError(t, err)
	require.Equal(t, []byte("png-1"), data)

	keys, err := client.ListKeys(ctx, "runs/r1/")
	require.NoError(t, err)
	require.Equal(t, []string{"runs/r1/learn-top_error.png", "runs/r1/learn-top_page.png"}, keys)

	keys, err = client.ListKeys(ctx, "runs/r9/")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestClient_GetMissingObject(t *testing.T) {
	client := TestClient(t, "artifacts")
	_, err := client.GetObject(context.Background(), "nope.png")
	require.True(t, errors.Is(err, ErrObjectNotFound), "expected ErrObjectNotFound, got %v", err)
}

func TestClient_PublicReadUpload(t *testing.T) {
	cfg := FakeBucket(t, "artifacts")
	cfg.PublicRead = true
	client := TestClientFor(t, cfg)

	require.NoError(t, client.PutObject(context.Background(), "runs/r1/a.png", []byte("png"), "image/png"))
	require.Equal(t, cfg.Endpoint+"/artifacts/runs/r1/a.png", client.GetPublicURL("runs/r1/a.png"))
}

func TestClient_PublicURL(t *testing.T) {
	client := TestClientFor(t, Config{Region: "us-east-1", BucketName: "bucket", PublicURL: "https://cdn.example/bucket/"})
	require.Equal(t, "https://cdn.example/bucket/a/b.png", client.GetPublicURL("/a/b.png"))

	client = TestClientFor(t, Config{Region: "eu-west-1", BucketName: "bucket"})
	require.Equal(t, "https://s3.eu-west-1.amazonaws.com/bucket/a.png", client.GetPublicURL("a.png"))
}
