package model

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceProfile is a snapshot of a device profile instantiated from a
// template. (TenantRef, Model) is the idempotency key: the document store
// enforces a unique index on the pair and concurrent creations are
// resolved by re-reading the winner.
type DeviceProfile struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	TenantRef       string             `bson:"tenant_id"`
	Model           string             `bson:"model"`
	TemplateName    string             `bson:"template_name"`
	ProfileName     string             `bson:"profile_name"`
	RemoteProfileID string             `bson:"chirpstack_profile_id"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

// TemplateCacheEntry is a lazily-populated copy of a remote template body.
// Entries are never refreshed once written.
type TemplateCacheEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Body      json.RawMessage    `bson:"body"`
	UpdatedAt time.Time          `bson:"updated_at"`
}
