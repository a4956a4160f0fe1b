package capture

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/kuitang/pulsecheck/internal/s3client"
)

// Sink persists one image artifact and returns where it was written.
type Sink interface {
	Put(ctx context.Context, name string, png []byte) (string, error)
}

// DirSink writes artifacts into a directory on fs.
type DirSink struct {
	fs  afero.Fs
	dir string
}

// NewDirSink creates a sink writing under dir. The directory is created on
// first write.
func NewDirSink(fs afero.Fs, dir string) *DirSink {
	return &DirSink{fs: fs, dir: dir}
}

// NewOSDirSink writes artifacts to dir on the local filesystem.
func NewOSDirSink(dir string) *DirSink {
	return NewDirSink(afero.NewOsFs(), dir)
}

// Dir returns the output directory.
func (s *DirSink) Dir() string {
	return s.dir
}

func (s *DirSink) Put(_ context.Context, name string, png []byte) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir %q: %w", s.dir, err)
	}
	target := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, target, png, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", target, err)
	}
	return target, nil
}

// S3Sink mirrors artifacts into a bucket under prefix.
type S3Sink struct {
	client *s3client.Client
	prefix string
}

// NewS3Sink creates a sink writing keys "<prefix>/<name>".
func NewS3Sink(client *s3client.Client, prefix string) *S3Sink {
	return &S3Sink{client: client, prefix: prefix}
}

func (s *S3Sink) Put(ctx context.Context, name string, png []byte) (string, error) {
	key := path.Join(s.prefix, name)
	if err := s.client.PutObject(ctx, key, png, "image/png"); err != nil {
		return "", err
	}
	return s.client.GetPublicURL(key), nil
}

// Keys lists the object keys stored under the sink's prefix.
func (s *S3Sink) Keys(ctx context.Context) ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	return s.client.ListKeys(ctx, prefix)
}

// MultiSink writes to every sink. It succeeds when the first sink succeeds and
// returns that sink's location; later sink failures are joined into the error
// but do not discard the primary location.
type MultiSink []Sink

func (m MultiSink) Put(ctx context.Context, name string, png []byte) (string, error) {
	if len(m) == 0 {
		return "", errors.New("capture: no sinks configured")
	}
	var (
		primary string
		errList []error
	)
	for i, sink := range m {
		loc, err := sink.Put(ctx, name, png)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if i == 0 {
			primary = loc
		}
	}
	if primary == "" && len(errList) > 0 {
		return "", errors.Join(errList...)
	}
	return primary, errors.Join(errList...)
}
