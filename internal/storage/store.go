// Package storage provides the namespaced key/value view that stands in for the
// participant's on-device storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the backing store could not be read or written.
var ErrUnavailable = errors.New("session storage unavailable")

// Keys persisted per device namespace.
const (
	KeyParticipantID = "participant_id"
	KeyRecruitmentID = "recruitment_id"
	KeyConsent       = "consent"
	KeyAssignment    = "assignment"
	KeyScrapbook     = "scrapbook"
	KeyDraftPrefix   = "draft:"
)

// KeyCellCounts is persisted in the study-wide shared namespace.
const KeyCellCounts = "cell_counts"

// Store is a key/value view over a single namespace.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend persists values for many namespaces.
type Backend interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	Remove(ctx context.Context, namespace, key string) error
}

// DeviceNamespace returns the namespace holding one browser's keys.
func DeviceNamespace(studyID, deviceID string) string {
	return studyID + ":device:" + deviceID
}

// SharedNamespace returns the namespace for study-wide keys.
func SharedNamespace(studyID string) string {
	return studyID + ":shared"
}

// Scoped binds a backend to one namespace.
func Scoped(backend Backend, namespace string) Store {
	return &scoped{backend: backend, namespace: namespace}
}

type scoped struct {
	backend   Backend
	namespace string
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.backend.Get(ctx, s.namespace, key)
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return v, ok, nil
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, s.namespace, key, value); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, s.namespace, key); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// GetJSON decodes the value at key into out. It reports false when the key is
// absent. Malformed values are reported as absent so callers start fresh.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
