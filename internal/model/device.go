package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceStatus is the local lifecycle status of a device
type DeviceStatus string

const (
	DeviceActive   DeviceStatus = "active"
	DeviceInactive DeviceStatus = "inactive"
)

// Device is the local record of a registered device. A device document
// must never exist without a completed remote registration; the device
// saga deletes it again if any remote step fails.
type Device struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	TenantID  string              `bson:"tenant_id"`
	DevEUI    string              `bson:"dev_eui"`
	Name      string              `bson:"name"`
	Type      string              `bson:"type"`
	Status    DeviceStatus        `bson:"status"`
	Location  string              `bson:"location,omitempty"`
	GatewayID *primitive.ObjectID `bson:"gateway_id,omitempty"`
	Meta      DeviceMeta          `bson:"meta"`
	CreatedAt time.Time           `bson:"created_at"`
}

// DeviceMeta records the remote identifiers used during registration
type DeviceMeta struct {
	RemoteTenantID string `bson:"chirpstack_tenant_id,omitempty"`
	RemoteAppID    string `bson:"chirpstack_app_id,omitempty"`
	ProfileName    string `bson:"device_profile_name,omitempty"`
	ProfileID      string `bson:"device_profile_id,omitempty"`
}

// DeviceDraft carries the already-validated fields of a registration request.
// Type doubles as the device profile name to resolve remotely.
type DeviceDraft struct {
	TenantID    string
	DevEUI      string
	Name        string
	Description string
	Type        string
	Location    string
	GatewayID   string
}

// DeviceKey holds the pre-shared OTAA join credential for a device type
type DeviceKey struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Type   string             `bson:"type"`
	AppKey string             `bson:"app_key"`
	NwkKey string             `bson:"nwk_key,omitempty"`
}
