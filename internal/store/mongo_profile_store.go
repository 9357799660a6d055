package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

// MongoProfileStore implements ProfileStore over the device_profiles
// collection. The collection carries a unique index on (tenant_id, model).
type MongoProfileStore struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// GetByTenantModel retrieves the profile snapshot for a (tenant, model) pair
func (s *MongoProfileStore) GetByTenantModel(ctx context.Context, tenantRef, deviceModel string) (*model.DeviceProfile, error) {
	var profile model.DeviceProfile
	err := s.coll.FindOne(ctx, bson.M{"tenant_id": tenantRef, "model": deviceModel}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device profile: %w", err)
	}
	return &profile, nil
}

// Insert creates a profile snapshot, reporting unique-index races
func (s *MongoProfileStore) Insert(ctx context.Context, profile *model.DeviceProfile) error {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert device profile: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		profile.ID = id
	}
	return nil
}

// MongoTemplateCacheStore implements TemplateCacheStore over the
// dp_templates_cache collection
type MongoTemplateCacheStore struct {
	coll *mongo.Collection
}

// Get retrieves a cached template body by name
func (s *MongoTemplateCacheStore) Get(ctx context.Context, name string) (*model.TemplateCacheEntry, error) {
	var entry model.TemplateCacheEntry
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached template: %w", err)
	}
	return &entry, nil
}

// Put writes a template body into the cache, replacing any previous entry
func (s *MongoTemplateCacheStore) Put(ctx context.Context, entry *model.TemplateCacheEntry) error {
	entry.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"body":       entry.Body,
		"updated_at": entry.UpdatedAt,
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"name": entry.Name}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to cache template: %w", err)
	}
	return nil
}
