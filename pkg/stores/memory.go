package stores

import "fmt"

// MemoryProjectStore is an in-memory ProjectStore for tests and dry
// runs. It preserves insertion order like the file store.
type MemoryProjectStore struct {
	projects []ProjectRecord
}

// NewMemoryProjectStore creates an empty in-memory project store.
func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{}
}

// Get returns the project with the given name or ErrNotFound.
func (s *MemoryProjectStore) Get(name string) (*ProjectRecord, error) {
	for _, rec := range s.projects {
		if rec.Name == name {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// Upsert inserts the record, replacing any record with the same name.
func (s *MemoryProjectStore) Upsert(rec ProjectRecord) error {
	kept := s.projects[:0]
	for _, existing := range s.projects {
		if existing.Name != rec.Name {
			kept = append(kept, existing)
		}
	}
	s.projects = append(kept, rec)
	return nil
}

// Remove deletes the project with the given name.
func (s *MemoryProjectStore) Remove(name string) error {
	kept := s.projects[:0]
	found := false
	for _, existing := range s.projects {
		if existing.Name == name {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	s.projects = kept
	return nil
}

// List returns all stored projects.
func (s *MemoryProjectStore) List() ([]ProjectRecord, error) {
	return s.projects, nil
}

// MemoryEnvironmentStore is an in-memory EnvironmentStore for tests.
type MemoryEnvironmentStore struct {
	vms []EnvironmentRecord
}

// NewMemoryEnvironmentStore creates an empty in-memory environment
// store.
func NewMemoryEnvironmentStore() *MemoryEnvironmentStore {
	return &MemoryEnvironmentStore{}
}

// Get returns the environment with the given instance name or
// ErrNotFound.
func (s *MemoryEnvironmentStore) Get(name string) (*EnvironmentRecord, error) {
	for _, rec := range s.vms {
		if rec.Name == name {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("environment %q: %w", name, ErrNotFound)
}

// GetByFeature returns the environment serving the (project, feature)
// pair or ErrNotFound.
func (s *MemoryEnvironmentStore) GetByFeature(project, feature string) (*EnvironmentRecord, error) {
	for _, rec := range s.vms {
		if rec.Project == project && rec.Feature == feature {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("environment for %s/%s: %w", project, feature, ErrNotFound)
}

// Upsert inserts the record, replacing any record with the same
// instance name.
func (s *MemoryEnvironmentStore) Upsert(rec EnvironmentRecord) error {
	kept := s.vms[:0]
	for _, existing := range s.vms {
		if existing.Name != rec.Name {
			kept = append(kept, existing)
		}
	}
	s.vms = append(kept, rec)
	return nil
}

// Remove deletes the environment with the given instance name.
func (s *MemoryEnvironmentStore) Remove(name string) error {
	kept := s.vms[:0]
	found := false
	for _, existing := range s.vms {
		if existing.Name == name {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return fmt.Errorf("environment %q: %w", name, ErrNotFound)
	}
	s.vms = kept
	return nil
}

// List returns all stored environments.
func (s *MemoryEnvironmentStore) List() ([]EnvironmentRecord, error) {
	return s.vms, nil
}
