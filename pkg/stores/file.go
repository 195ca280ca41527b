package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileProjectStore persists project records as a single versioned JSON
// document. Every operation reads the full container and writes it back;
// there is no cross-process locking, the tool is single-operator.
type FileProjectStore struct {
	path      string
	recovered bool
}

// NewFileProjectStore creates a project store backed by the given file.
// The file does not need to exist yet.
func NewFileProjectStore(path string) *FileProjectStore {
	return &FileProjectStore{path: path}
}

// Recovered reports whether the last load found the record file corrupt
// or version-mismatched and substituted an empty container.
func (s *FileProjectStore) Recovered() bool {
	return s.recovered
}

func (s *FileProjectStore) load() *projectsFile {
	container := &projectsFile{Version: SchemaVersion}
	loaded, recovered := readRecordFile(s.path, container)
	if loaded && container.Version != SchemaVersion {
		log.Warn().
			Int("version", container.Version).
			Int("expected", SchemaVersion).
			Str("path", s.path).
			Msg("unexpected record file version, substituting empty store")
		recovered = true
		loaded = false
	}
	if !loaded {
		container = &projectsFile{Version: SchemaVersion}
	}
	s.recovered = recovered
	return container
}

func (s *FileProjectStore) save(container *projectsFile) error {
	return writeRecordFile(s.path, container)
}

// Get returns the project with the given name or ErrNotFound.
func (s *FileProjectStore) Get(name string) (*ProjectRecord, error) {
	for _, rec := range s.load().Projects {
		if rec.Name == name {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// Upsert inserts the record, replacing any existing record with the
// same name.
func (s *FileProjectStore) Upsert(rec ProjectRecord) error {
	container := s.load()
	kept := container.Projects[:0]
	for _, existing := range container.Projects {
		if existing.Name != rec.Name {
			kept = append(kept, existing)
		}
	}
	container.Projects = append(kept, rec)
	return s.save(container)
}

// Remove deletes the project with the given name. Returns ErrNotFound
// if no such record exists.
func (s *FileProjectStore) Remove(name string) error {
	container := s.load()
	kept := container.Projects[:0]
	found := false
	for _, existing := range container.Projects {
		if existing.Name == name {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	container.Projects = kept
	return s.save(container)
}

// List returns all stored projects.
func (s *FileProjectStore) List() ([]ProjectRecord, error) {
	return s.load().Projects, nil
}

// FileEnvironmentStore persists environment records as a single
// versioned JSON document, keyed by instance name.
type FileEnvironmentStore struct {
	path      string
	recovered bool
}

// NewFileEnvironmentStore creates an environment store backed by the
// given file. The file does not need to exist yet.
func NewFileEnvironmentStore(path string) *FileEnvironmentStore {
	return &FileEnvironmentStore{path: path}
}

// Recovered reports whether the last load found the record file corrupt
// or version-mismatched and substituted an empty container.
func (s *FileEnvironmentStore) Recovered() bool {
	return s.recovered
}

func (s *FileEnvironmentStore) load() *vmsFile {
	container := &vmsFile{Version: SchemaVersion}
	loaded, recovered := readRecordFile(s.path, container)
	if loaded && container.Version != SchemaVersion {
		log.Warn().
			Int("version", container.Version).
			Int("expected", SchemaVersion).
			Str("path", s.path).
			Msg("unexpected record file version, substituting empty store")
		recovered = true
		loaded = false
	}
	if !loaded {
		container = &vmsFile{Version: SchemaVersion}
	}
	s.recovered = recovered
	return container
}

func (s *FileEnvironmentStore) save(container *vmsFile) error {
	return writeRecordFile(s.path, container)
}

// Get returns the environment with the given instance name or
// ErrNotFound.
func (s *FileEnvironmentStore) Get(name string) (*EnvironmentRecord, error) {
	for _, rec := range s.load().VMs {
		if rec.Name == name {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("environment %q: %w", name, ErrNotFound)
}

// GetByFeature returns the environment serving the (project, feature)
// pair or ErrNotFound. The pair is the lookup key for teardown and
// status operations; at most one active record exists per pair.
func (s *FileEnvironmentStore) GetByFeature(project, feature string) (*EnvironmentRecord, error) {
	for _, rec := range s.load().VMs {
		if rec.Project == project && rec.Feature == feature {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("environment for %s/%s: %w", project, feature, ErrNotFound)
}

// Upsert inserts the record, replacing any existing record with the
// same instance name.
func (s *FileEnvironmentStore) Upsert(rec EnvironmentRecord) error {
	container := s.load()
	kept := container.VMs[:0]
	for _, existing := range container.VMs {
		if existing.Name != rec.Name {
			kept = append(kept, existing)
		}
	}
	container.VMs = append(kept, rec)
	return s.save(container)
}

// Remove deletes the environment with the given instance name. Returns
// ErrNotFound if no such record exists.
func (s *FileEnvironmentStore) Remove(name string) error {
	container := s.load()
	kept := container.VMs[:0]
	found := false
	for _, existing := range container.VMs {
		if existing.Name == name {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return fmt.Errorf("environment %q: %w", name, ErrNotFound)
	}
	container.VMs = kept
	return s.save(container)
}

// List returns all stored environments.
func (s *FileEnvironmentStore) List() ([]EnvironmentRecord, error) {
	return s.load().VMs, nil
}

// readRecordFile reads and unmarshals a record file into v. It returns
// loaded=false when the file does not exist, and recovered=true when
// the file was unreadable or failed to parse, in which case the caller
// substitutes an empty container. Parse failures never propagate; the
// data loss is an accepted trade-off and is logged for visibility.
func readRecordFile(path string, v any) (loaded bool, recovered bool) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("record file unreadable, substituting empty store")
		return false, true
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("record file corrupt, substituting empty store")
		return false, true
	}
	return true, false
}

// writeRecordFile atomically replaces the record file: the new content
// is written to a temp file in the same directory and renamed over the
// old one, so a concurrent load never observes a partial write.
func writeRecordFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp record file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp record file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace record file: %w", err)
	}
	return nil
}
