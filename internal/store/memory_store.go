package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

// MemoryProfileStore implements ProfileStore with an in-memory map and the
// same (tenant, model) uniqueness behavior as the document store. Used in
// tests that exercise the upsert race.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[[2]string]*model.DeviceProfile
}

// NewMemoryProfileStore creates an empty in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[[2]string]*model.DeviceProfile),
	}
}

// GetByTenantModel retrieves the snapshot for a (tenant, model) pair
func (s *MemoryProfileStore) GetByTenantModel(ctx context.Context, tenantRef, deviceModel string) (*model.DeviceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[[2]string{tenantRef, deviceModel}]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

// Insert creates a snapshot, returning ErrDuplicateKey on a losing race
func (s *MemoryProfileStore) Insert(ctx context.Context, profile *model.DeviceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{profile.TenantRef, profile.Model}
	if _, exists := s.profiles[key]; exists {
		return ErrDuplicateKey
	}
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	copied := *profile
	s.profiles[key] = &copied
	return nil
}

// MemoryTemplateCacheStore implements TemplateCacheStore with an in-memory map
type MemoryTemplateCacheStore struct {
	mu      sync.RWMutex
	entries map[string]*model.TemplateCacheEntry
}

// NewMemoryTemplateCacheStore creates an empty in-memory template cache
func NewMemoryTemplateCacheStore() *MemoryTemplateCacheStore {
	return &MemoryTemplateCacheStore{
		entries: make(map[string]*model.TemplateCacheEntry),
	}
}

// Get retrieves a cached template body by name
func (s *MemoryTemplateCacheStore) Get(ctx context.Context, name string) (*model.TemplateCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

// Put writes a template body into the cache
func (s *MemoryTemplateCacheStore) Put(ctx context.Context, entry *model.TemplateCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.entries[entry.Name] = &copied
	return nil
}
