package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan identifies the subscription tier of a tenant
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// DefaultMaxDevices is the device quota applied when a draft carries none
const DefaultMaxDevices = 5

// Tenant is the local system-of-record document for a customer boundary.
// RemoteTenantID is empty until the remote creation step has succeeded;
// a tenant record with an empty RemoteTenantID is transient and must never
// survive a failed provisioning attempt.
type Tenant struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Description      string             `bson:"description,omitempty"`
	Plan             Plan               `bson:"plan"`
	MaxDevices       int64              `bson:"max_devices"`
	CanHaveGateways  bool               `bson:"can_have_gateways"`
	OwnerUID         string             `bson:"owner_uid"`
	RemoteTenantID   string             `bson:"chirpstack_tenant_id,omitempty"`
	RemoteTenantName string             `bson:"chirpstack_tenant_name,omitempty"`
	RemoteAppID      string             `bson:"chirpstack_app_id,omitempty"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

// Committed reports whether the remote creation step has completed
func (t *Tenant) Committed() bool {
	return t.RemoteTenantID != ""
}

// TenantDraft carries the already-validated fields of a tenant create request
type TenantDraft struct {
	Name            string
	Description     string
	Plan            Plan
	MaxDevices      int64
	CanHaveGateways bool
}

// User is an authenticated platform user associated with a tenant.
// The email is the identity label used for remote tenant name composition.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	UID      string             `bson:"uid"`
	TenantID string             `bson:"tenant_id"`
	Email    string             `bson:"email"`
	Role     string             `bson:"role"`
}
