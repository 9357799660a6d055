package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

// MongoTenantStore implements TenantStore over the tenants collection
type MongoTenantStore struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// Insert creates a tenant document and returns its generated id
func (s *MongoTenantStore) Insert(ctx context.Context, tenant *model.Tenant) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, tenant)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert tenant: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	tenant.ID = id
	return id, nil
}

// GetByID retrieves a tenant document
func (s *MongoTenantStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Tenant, error) {
	var tenant model.Tenant
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&tenant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// SetRemoteRefs patches the remote identifiers onto a pending tenant
func (s *MongoTenantStore) SetRemoteRefs(ctx context.Context, id primitive.ObjectID, remoteTenantID, remoteTenantName, remoteAppID string) error {
	update := bson.M{"$set": bson.M{
		"chirpstack_tenant_id":   remoteTenantID,
		"chirpstack_tenant_name": remoteTenantName,
		"chirpstack_app_id":      remoteAppID,
		"updated_at":             time.Now().UTC(),
	}}

	result, err := s.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to patch tenant remote refs: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRemoteAppID patches only the remote application id
func (s *MongoTenantStore) SetRemoteAppID(ctx context.Context, id primitive.ObjectID, appID string) error {
	update := bson.M{"$set": bson.M{
		"chirpstack_app_id": appID,
		"updated_at":        time.Now().UTC(),
	}}

	result, err := s.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to patch tenant app id: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tenant document
func (s *MongoTenantStore) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete tenant: %w", err)
	}
	return result.DeletedCount, nil
}

// MongoUserStore implements UserStore over the users collection
type MongoUserStore struct {
	coll *mongo.Collection
}

// GetByUID retrieves a user by identity provider UID
func (s *MongoUserStore) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	err := s.coll.FindOne(ctx, bson.M{"uid": uid}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
