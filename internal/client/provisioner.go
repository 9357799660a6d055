package client

import "context"

// TenantCreate carries the fields for a remote tenant creation
type TenantCreate struct {
	Name            string
	Description     string
	CanHaveGateways bool
}

// RemoteTenant is a remote-service tenant as seen through list/get calls
type RemoteTenant struct {
	ID              string
	Name            string
	CanHaveGateways bool
}

// DeviceCreate carries the fields for a remote device creation
type DeviceCreate struct {
	DevEUI        string
	Name          string
	Description   string
	ApplicationID string
	ProfileID     string
}

// DeviceKeysCreate carries the OTAA join credential for a device
type DeviceKeysCreate struct {
	DevEUI string
	AppKey string
	NwkKey string
}

// Provisioner is the uniform remote provisioning surface the sagas talk
// to. Implementations attach the authorization credential to every call
// and translate every failure into a ProvisioningError.
//
// Delete operations absorb a remote "not found" as success; mutating
// calls are never retried, read and list calls may be retried with
// bounded backoff.
type Provisioner interface {
	CreateTenant(ctx context.Context, req TenantCreate) (string, error)
	GetTenant(ctx context.Context, remoteID string) (*RemoteTenant, error)
	// DeleteTenant reports whether the remote side actually deleted the
	// tenant; false with a nil error means it was already absent.
	DeleteTenant(ctx context.Context, remoteID string) (bool, error)
	ListTenants(ctx context.Context, limit, offset int, search string) ([]RemoteTenant, int64, error)

	// EnsureApplication returns the id of the application with the exact
	// desiredName under the tenant, creating it when absent. Idempotent.
	EnsureApplication(ctx context.Context, tenantRemoteID, desiredName string) (string, error)

	// DeviceProfileIDByName scans the tenant's profiles page by page and
	// returns the first exact case-sensitive name match, or a NotFound
	// error once every page is exhausted.
	DeviceProfileIDByName(ctx context.Context, profileName, tenantRemoteID string) (string, error)

	CreateDevice(ctx context.Context, req DeviceCreate) error
	DeleteDevice(ctx context.Context, devEUI string) error
	CreateDeviceKeys(ctx context.Context, req DeviceKeysCreate) error
}
