package backgrounds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source fetches the bytes of a catalog reference.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FileSource reads references relative to a local root directory.
type FileSource struct {
	Root string
}

func (f FileSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := sanitizeRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("failed to read background %s: %w", clean, err)
	}
	return data, nil
}

// ObjectGetter fetches an object body. *common.S3 satisfies it.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Source reads references as object keys from one bucket.
type S3Source struct {
	Client ObjectGetter
	Bucket string
}

func (s S3Source) Fetch(ctx context.Context, ref string) ([]byte, error) {
	body, err := s.Client.Get(ctx, s.Bucket, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, ref, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, ref, err)
	}
	return data, nil
}

// sanitizeRef cleans a relative reference and refuses anything that would
// escape the source root.
func sanitizeRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("background reference is required")
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	ref = strings.TrimPrefix(ref, "./")
	ref = strings.TrimLeft(ref, "/")
	cleaned := filepath.ToSlash(filepath.Clean(ref))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid background reference %q", ref)
	}
	return cleaned, nil
}
