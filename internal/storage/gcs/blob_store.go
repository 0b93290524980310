// Package gcs provides an artifact store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/hash/sha256"
)

const (
	artifactExt  = ".txt"
	contentType  = "text/plain; charset=utf-8"
	checksumMeta = "sha256"
)

// Config captures the parameters required to address the bucket.
type Config struct {
	Bucket string
	Prefix string
}

// Store writes dictionaries as <prefix>/<id>.txt objects.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed artifact store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *Store) objectName(id string) string {
	if s.prefix == "" {
		return id + artifactExt
	}
	return path.Join(s.prefix, id+artifactExt)
}

func (s *Store) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

// Write uploads the encoded records and tags the object with its checksum.
func (s *Store) Write(ctx context.Context, id string, records []dictionary.Record) error {
	if err := dictionary.ValidateID(id); err != nil {
		return err
	}
	data := dictionary.EncodeRecords(records)
	name := s.objectName(id)

	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = map[string]string{checksumMeta: sha256.Sum(data)}
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("%w: write object %s: %w (close writer: %v)", dictionary.ErrIOFailure, name, err, closeErr)
		}
		return fmt.Errorf("%w: write object %s: %w", dictionary.ErrIOFailure, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: close writer for %s: %w", dictionary.ErrIOFailure, name, err)
	}
	return nil
}

// Read downloads the artifact bytes.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	if err := dictionary.ValidateID(id); err != nil {
		return nil, err
	}
	return s.readObject(ctx, s.objectName(id))
}

func (s *Store) readObject(ctx context.Context, name string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, dictionary.NotFoundf("no object %s", name)
		}
		return nil, fmt.Errorf("%w: open object %s: %w", dictionary.ErrIOFailure, name, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read object %s: %w", dictionary.ErrIOFailure, name, err)
	}
	return data, nil
}

// ReadAll lists every artifact under the prefix and parses it.
func (s *Store) ReadAll(ctx context.Context) ([]dictionary.Artifact, error) {
	prefix := s.listPrefix()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var artifacts []dictionary.Artifact
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list objects: %w", dictionary.ErrIOFailure, err)
		}
		rel := strings.TrimPrefix(attrs.Name, prefix)
		if strings.Contains(rel, "/") || !strings.HasSuffix(rel, artifactExt) {
			continue
		}
		id := strings.TrimSuffix(rel, artifactExt)
		if dictionary.ValidateID(id) != nil {
			continue
		}
		data, err := s.readObject(ctx, attrs.Name)
		if err != nil {
			return nil, err
		}
		records, err := dictionary.ParseRecords(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", dictionary.ErrIOFailure, attrs.Name, err)
		}
		artifacts = append(artifacts, dictionary.Artifact{ID: id, Records: records})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	return artifacts, nil
}

// Delete removes the artifact object.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := dictionary.ValidateID(id); err != nil {
		return err
	}
	name := s.objectName(id)
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return dictionary.NotFoundf("no object %s", name)
		}
		return fmt.Errorf("%w: delete object %s: %w", dictionary.ErrIOFailure, name, err)
	}
	return nil
}
