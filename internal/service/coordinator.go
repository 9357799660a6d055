package service

import (
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/metrics"
	"github.com/cdukcom/iot-platform-multitenant/internal/store"
)

// Coordinator bundles the provisioning sagas behind one composition
// root. The request surface constructs it once at startup with a shared
// remote client and hands requests to the individual services.
type Coordinator struct {
	Tenants  *TenantService
	Devices  *DeviceService
	Profiles *ProfileService
}

// NewCoordinator wires the three saga services over shared collaborators
func NewCoordinator(
	stores *store.Mongo,
	remote client.Provisioner,
	catalog client.TemplateCatalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		Tenants:  NewTenantService(stores.Tenants, stores.Users, stores.Devices, remote, m, logger),
		Devices:  NewDeviceService(stores.Devices, stores.Tenants, stores.DeviceKeys, remote, catalog, m, logger),
		Profiles: NewProfileService(stores.Profiles, stores.Templates, stores.Tenants, catalog, m, logger),
	}
}
