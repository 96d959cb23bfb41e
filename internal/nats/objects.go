package nats

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

const artifactsBucket = "ARTIFACTS"

// ObjectStore holds binary artifacts in a JetStream object store bucket.
type ObjectStore struct {
	obs jetstream.ObjectStore
}

// NewObjectStore creates (or binds to) the artifacts bucket.
func NewObjectStore(ctx context.Context, client *Client) (*ObjectStore, error) {
	js := client.JetStream()
	obs, err := js.ObjectStore(ctx, artifactsBucket)
	if err == nil {
		return &ObjectStore{obs: obs}, nil
	}
	obs, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      artifactsBucket,
		Description: "Knowledge base binary artifacts",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	return &ObjectStore{obs: obs}, nil
}

// Put stores the artifact and returns its reference.
func (s *ObjectStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := uuid.Must(uuid.NewV7()).String()
	meta := jetstream.ObjectMeta{
		Name: ref,
		Headers: map[string][]string{
			"Content-Type": {contentType},
		},
	}
	if _, err := s.obs.Put(ctx, meta, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to put artifact: %w", err)
	}
	return ref, nil
}

// URL returns the serving path for an artifact.
func (s *ObjectStore) URL(ctx context.Context, ref string) (string, error) {
	if _, err := s.obs.GetInfo(ctx, ref); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return "", errcode.New(errcode.CodeNotFound, "artifact not found")
		}
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}
	return fmt.Sprintf("/artifacts/%s", ref), nil
}

// Delete removes the artifact.
func (s *ObjectStore) Delete(ctx context.Context, ref string) error {
	if err := s.obs.Delete(ctx, ref); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return errcode.New(errcode.CodeNotFound, "artifact not found")
		}
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
