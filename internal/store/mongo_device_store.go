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

// MongoDeviceStore implements DeviceStore over the devices collection
type MongoDeviceStore struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// Insert creates a device document and returns its generated id
func (s *MongoDeviceStore) Insert(ctx context.Context, device *model.Device) (primitive.ObjectID, error) {
	device.CreatedAt = time.Now().UTC()

	result, err := s.coll.InsertOne(ctx, device)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrDuplicateKey
		}
		return primitive.NilObjectID, fmt.Errorf("failed to insert device: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	device.ID = id
	return id, nil
}

// GetByID retrieves a device document
func (s *MongoDeviceStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Device, error) {
	var device model.Device
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// SetMeta patches remote registration metadata onto a device document
func (s *MongoDeviceStore) SetMeta(ctx context.Context, id primitive.ObjectID, meta model.DeviceMeta) error {
	update := bson.M{"$set": bson.M{"meta": meta}}
	result, err := s.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to patch device meta: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a device document
func (s *MongoDeviceStore) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete device: %w", err)
	}
	return result.DeletedCount, nil
}

// DeleteByTenant bulk-deletes all devices referencing a tenant
func (s *MongoDeviceStore) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return 0, fmt.Errorf("failed to purge tenant devices: %w", err)
	}
	s.logger.Debug("Purged tenant devices",
		zap.String("tenant_id", tenantID),
		zap.Int64("deleted", result.DeletedCount))
	return result.DeletedCount, nil
}

// CountByTenant counts devices referencing a tenant
func (s *MongoDeviceStore) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return 0, fmt.Errorf("failed to count tenant devices: %w", err)
	}
	return count, nil
}

// ListByTenant lists devices referencing a tenant, in storage order
func (s *MongoDeviceStore) ListByTenant(ctx context.Context, tenantID string) ([]*model.Device, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant devices: %w", err)
	}
	defer cursor.Close(ctx)

	var devices []*model.Device
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode tenant devices: %w", err)
	}
	return devices, nil
}

// MongoDeviceKeyStore implements DeviceKeyStore over the devicekeys collection
type MongoDeviceKeyStore struct {
	coll *mongo.Collection
}

// GetByType retrieves the OTAA key document for a device type
func (s *MongoDeviceKeyStore) GetByType(ctx context.Context, deviceType string) (*model.DeviceKey, error) {
	var key model.DeviceKey
	err := s.coll.FindOne(ctx, bson.M{"type": deviceType}).Decode(&key)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device key: %w", err)
	}
	return &key, nil
}
