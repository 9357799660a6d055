package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

// ErrNotFound is returned when a document is not found
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert violates a unique index
var ErrDuplicateKey = errors.New("duplicate key")

// TenantStore persists the local tenant system-of-record
type TenantStore interface {
	Insert(ctx context.Context, tenant *model.Tenant) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Tenant, error)
	// SetRemoteRefs patches the record with the remote identifiers. This is
	// the only transition to the committed state.
	SetRemoteRefs(ctx context.Context, id primitive.ObjectID, remoteTenantID, remoteTenantName, remoteAppID string) error
	SetRemoteAppID(ctx context.Context, id primitive.ObjectID, appID string) error
	// Delete removes the record and returns the number of documents deleted
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// UserStore resolves platform users by their identity provider UID
type UserStore interface {
	GetByUID(ctx context.Context, uid string) (*model.User, error)
}

// DeviceStore persists local device records
type DeviceStore interface {
	Insert(ctx context.Context, device *model.Device) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Device, error)
	// SetMeta patches the remote registration metadata onto a pending
	// device. This is the commit transition of the device saga.
	SetMeta(ctx context.Context, id primitive.ObjectID, meta model.DeviceMeta) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*model.Device, error)
}

// DeviceKeyStore resolves pre-shared OTAA keys by device type
type DeviceKeyStore interface {
	GetByType(ctx context.Context, deviceType string) (*model.DeviceKey, error)
}

// ProfileStore persists device profile snapshots keyed by (tenant, model)
type ProfileStore interface {
	GetByTenantModel(ctx context.Context, tenantRef, deviceModel string) (*model.DeviceProfile, error)
	// Insert returns ErrDuplicateKey when a concurrent upsert already
	// created a snapshot for the same (tenant, model) pair.
	Insert(ctx context.Context, profile *model.DeviceProfile) error
}

// TemplateCacheStore is the lazy read-through cache of template bodies
type TemplateCacheStore interface {
	Get(ctx context.Context, name string) (*model.TemplateCacheEntry, error)
	Put(ctx context.Context, entry *model.TemplateCacheEntry) error
}
