package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Storage keeps receipt files in a public Supabase Storage bucket.
type Storage struct {
	client *Client
	bucket string
}

// NewStorage creates a blob store on bucket.
func NewStorage(client *Client, bucket string) *Storage {
	return &Storage{client: client, bucket: bucket}
}

func (s *Storage) objectURL(name string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, s.bucket, url.PathEscape(name))
}

func (s *Storage) publicPrefix() string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/", s.client.baseURL, s.bucket)
}

// Put uploads data and returns the object's public URL.
func (s *Storage) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Storage.Put")
	defer span.End()
	span.SetAttributes(attribute.String("storage.object", name), attribute.Int("storage.size", len(data)))

	header := http.Header{
		"Content-Type": {contentType},
		"X-Upsert":     {"false"},
	}
	err := s.client.execute(ctx, "storage", func() error {
		_, err := s.client.send(ctx, http.MethodPost, s.objectURL(name), data, header)
		return err
	})
	if err != nil {
		return "", err
	}

	s.client.logger.Debug("supabase: object stored", zap.String("bucket", s.bucket), zap.String("object", name))
	return s.publicPrefix() + url.PathEscape(name), nil
}

// Delete removes the object behind a URL returned by Put.
func (s *Storage) Delete(ctx context.Context, fileURL string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Storage.Delete")
	defer span.End()

	escaped, ok := strings.CutPrefix(fileURL, s.publicPrefix())
	if !ok || escaped == "" {
		return fmt.Errorf("url %q is not in bucket %s", fileURL, s.bucket)
	}
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("invalid object url: %w", err)
	}

	return s.client.execute(ctx, "storage", func() error {
		_, err := s.client.send(ctx, http.MethodDelete, s.objectURL(name), nil, nil)
		return err
	})
}
