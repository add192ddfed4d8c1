// Package registry loads versioned model artifacts from blob storage.
//
// Layout inside the bucket:
//
//	<name>/LATEST               version string of the current model
//	<name>/<version>/model.json Artifact
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"

	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/pkg/logger"
)

// Latest resolves to the version named by the LATEST pointer.
const Latest = "latest"

const (
	latestObject   = "LATEST"
	artifactObject = "model.json"
)

// Registry reads and publishes model artifacts.
type Registry struct {
	bucket *blob.Bucket
	logger logger.Logger
}

// Open opens the bucket at bucketURL (file://, mem://, gs://).
func Open(ctx context.Context, bucketURL string) (*Registry, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketURL, err)
	}
	return New(bucket), nil
}

// New wraps an open bucket. The registry owns it from then on.
func New(bucket *blob.Bucket) *Registry {
	return &Registry{bucket: bucket, logger: logger.Get().Named("registry")}
}

// Close closes the bucket.
func (r *Registry) Close() error {
	return r.bucket.Close()
}

// Resolve maps "latest" or "" to a concrete version.
func (r *Registry) Resolve(ctx context.Context, name, version string) (string, error) {
	if version != "" && !strings.EqualFold(version, Latest) {
		return version, nil
	}
	raw, err := r.read(ctx, path.Join(name, latestObject))
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return "", fmt.Errorf("%w: empty %s pointer for %q", ErrInvalidArtifact, latestObject, name)
	}
	return v, nil
}

// LoadArtifact reads and validates one artifact.
func (r *Registry) LoadArtifact(ctx context.Context, name, version string) (Artifact, error) {
	v, err := r.Resolve(ctx, name, version)
	if err != nil {
		return Artifact{}, err
	}
	raw, err := r.read(ctx, path.Join(name, v, artifactObject))
	if err != nil {
		return Artifact{}, err
	}
	var a Artifact
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("%w: decode %s/%s: %w", ErrInvalidArtifact, name, v, err)
	}
	if a.Name != name || a.Version != v {
		return Artifact{}, fmt.Errorf("%w: stored as %s/%s but declares %s/%s", ErrInvalidArtifact, name, v, a.Name, a.Version)
	}
	if err := a.Validate(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// Load reads an artifact and builds its model.
func (r *Registry) Load(ctx context.Context, name, version string) (scoring.Model, error) {
	a, err := r.LoadArtifact(ctx, name, version)
	if err != nil {
		return nil, err
	}
	m, err := a.Model()
	if err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "model artifact loaded",
		logger.String("model", a.Name),
		logger.String("version", a.Version),
		logger.Int("features", len(a.Features)),
	)
	return m, nil
}

// Publish writes the artifact and, when promote is set, moves the LATEST
// pointer to it.
func (r *Registry) Publish(ctx context.Context, a Artifact, promote bool) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := a.Model(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	key := path.Join(a.Name, a.Version, artifactObject)
	if err := r.bucket.WriteAll(ctx, key, raw, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if promote {
		latest := path.Join(a.Name, latestObject)
		if err := r.bucket.WriteAll(ctx, latest, []byte(a.Version+"\n"), nil); err != nil {
			return fmt.Errorf("write %s: %w", latest, err)
		}
	}
	r.logger.Info(ctx, "model artifact published",
		logger.String("model", a.Name),
		logger.String("version", a.Version),
		logger.Bool("promoted", promote),
	)
	return nil
}

func (r *Registry) read(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}
