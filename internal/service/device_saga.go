package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
	"github.com/cdukcom/iot-platform-multitenant/internal/metrics"
	"github.com/cdukcom/iot-platform-multitenant/internal/model"
	"github.com/cdukcom/iot-platform-multitenant/internal/store"
	"github.com/cdukcom/iot-platform-multitenant/internal/validation"
)

// DeviceService runs the device registration saga: quota check, local
// pending insert, remote profile resolution and device creation, then the
// local commit-patch. Any remote failure deletes the local record again.
//
// The quota check and the insert are not atomic: concurrent registrations
// against one tenant can transiently overshoot max_devices by the number
// of in-flight requests. Accepted, not prevented.
type DeviceService struct {
	devices store.DeviceStore
	tenants store.TenantStore
	keys    store.DeviceKeyStore
	remote  client.Provisioner
	catalog client.TemplateCatalog
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDeviceService creates a new device saga service
func NewDeviceService(
	devices store.DeviceStore,
	tenants store.TenantStore,
	keys store.DeviceKeyStore,
	remote client.Provisioner,
	catalog client.TemplateCatalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		devices: devices,
		tenants: tenants,
		keys:    keys,
		remote:  remote,
		catalog: catalog,
		metrics: m,
		logger:  logger,
	}
}

// RegisterDevice registers a device in both systems and returns the local
// id. The draft's type doubles as the remote device profile name.
func (s *DeviceService) RegisterDevice(ctx context.Context, draft model.DeviceDraft) (string, error) {
	started := time.Now()
	opID := uuid.NewString()

	tenantOID, err := primitive.ObjectIDFromHex(draft.TenantID)
	if err != nil {
		return "", errors.Validation("invalid tenant id %q", draft.TenantID)
	}
	devEUI, err := validation.NormalizeDevEUI(draft.DevEUI)
	if err != nil {
		return "", err
	}
	if err := validation.NonEmpty("type", draft.Type); err != nil {
		return "", err
	}

	gatewayID, err := s.resolveGateway(ctx, draft.GatewayID)
	if err != nil {
		return "", err
	}

	count, err := s.devices.CountByTenant(ctx, draft.TenantID)
	if err != nil {
		return "", err
	}
	tenant, err := s.tenants.GetByID(ctx, tenantOID)
	if err != nil {
		if err == store.ErrNotFound {
			return "", errors.NotFound("tenant", draft.TenantID)
		}
		return "", err
	}
	if count >= tenant.MaxDevices {
		s.metrics.QuotaRejections.Inc()
		s.metrics.SagaTotal.WithLabelValues("register_device", "quota_rejected").Inc()
		return "", errors.QuotaExceeded(draft.TenantID, count, tenant.MaxDevices)
	}
	if !tenant.Committed() {
		return "", errors.Validation("tenant %s has no remote counterpart", draft.TenantID)
	}

	name := draft.Name
	if name == "" {
		name = "unnamed-device"
	}

	device := &model.Device{
		TenantID:  draft.TenantID,
		DevEUI:    devEUI,
		Name:      name,
		Type:      draft.Type,
		Status:    model.DeviceActive,
		Location:  draft.Location,
		GatewayID: gatewayID,
	}

	localID, err := s.devices.Insert(ctx, device)
	if err != nil {
		if err == store.ErrDuplicateKey {
			return "", errors.Validation("device %s of type %s already registered for tenant %s",
				devEUI, draft.Type, draft.TenantID)
		}
		s.metrics.SagaTotal.WithLabelValues("register_device", "failure").Inc()
		return "", err
	}

	s.logger.Info("Device pending record inserted",
		zap.String("op_id", opID),
		zap.String("device_id", localID.Hex()),
		zap.String("dev_eui", devEUI))

	meta, err := s.registerRemote(ctx, opID, tenant, tenantOID, devEUI, name, draft)
	if err != nil {
		s.compensateDeviceInsert(ctx, opID, localID)
		s.metrics.SagaTotal.WithLabelValues("register_device", "failure").Inc()
		s.metrics.RemoteCallErrors.WithLabelValues("device.register", errors.ClassOf(err).String()).Inc()
		return "", err
	}

	if err := s.devices.SetMeta(ctx, localID, *meta); err != nil {
		s.compensateDeviceRemote(ctx, opID, devEUI)
		s.compensateDeviceInsert(ctx, opID, localID)
		s.metrics.SagaTotal.WithLabelValues("register_device", "failure").Inc()
		return "", err
	}

	s.metrics.SagaTotal.WithLabelValues("register_device", "success").Inc()
	s.metrics.SagaDuration.WithLabelValues("register_device").Observe(time.Since(started).Seconds())

	s.logger.Info("Device registered",
		zap.String("op_id", opID),
		zap.String("device_id", localID.Hex()),
		zap.String("dev_eui", devEUI),
		zap.String("device_profile_id", meta.ProfileID))
	return localID.Hex(), nil
}

// registerRemote performs the remote half of the saga and returns the
// metadata for the local commit-patch. A failure after the remote device
// creation also deletes the remote device.
func (s *DeviceService) registerRemote(
	ctx context.Context,
	opID string,
	tenant *model.Tenant,
	tenantOID primitive.ObjectID,
	devEUI, name string,
	draft model.DeviceDraft,
) (*model.DeviceMeta, error) {
	appID := tenant.RemoteAppID
	if appID == "" {
		desiredName := tenant.RemoteTenantName
		if desiredName == "" {
			desiredName = tenant.Name
		}
		var err error
		appID, err = s.remote.EnsureApplication(ctx, tenant.RemoteTenantID, desiredName)
		if err != nil {
			return nil, err
		}
		if err := s.tenants.SetRemoteAppID(ctx, tenantOID, appID); err != nil {
			return nil, err
		}
	}

	profileID, err := s.remote.DeviceProfileIDByName(ctx, draft.Type, tenant.RemoteTenantID)
	if err != nil {
		return nil, err
	}

	err = s.catalog.CreateDevice(ctx, client.DeviceCreate{
		DevEUI:        devEUI,
		Name:          name,
		Description:   draft.Description,
		ApplicationID: appID,
		ProfileID:     profileID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.provisionJoinKeys(ctx, devEUI, draft.Type); err != nil {
		s.compensateDeviceRemote(ctx, opID, devEUI)
		return nil, err
	}

	return &model.DeviceMeta{
		RemoteTenantID: tenant.RemoteTenantID,
		RemoteAppID:    appID,
		ProfileName:    draft.Type,
		ProfileID:      profileID,
	}, nil
}

// provisionJoinKeys provisions the OTAA join credential when a pre-shared
// key exists for the device type. Types without a key are join-less.
func (s *DeviceService) provisionJoinKeys(ctx context.Context, devEUI, deviceType string) error {
	key, err := s.keys.GetByType(ctx, deviceType)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	appKey, err := validation.NormalizeAppKey(key.AppKey)
	if err != nil {
		return err
	}
	return s.remote.CreateDeviceKeys(ctx, client.DeviceKeysCreate{
		DevEUI: devEUI,
		AppKey: appKey,
		NwkKey: key.NwkKey,
	})
}

// ListDevicesByTenant lists the tenant's devices. Pure read, storage order.
func (s *DeviceService) ListDevicesByTenant(ctx context.Context, tenantID string) ([]*model.Device, error) {
	if _, err := primitive.ObjectIDFromHex(tenantID); err != nil {
		return nil, errors.Validation("invalid tenant id %q", tenantID)
	}
	return s.devices.ListByTenant(ctx, tenantID)
}

// resolveGateway validates an optional gateway reference
func (s *DeviceService) resolveGateway(ctx context.Context, gatewayID string) (*primitive.ObjectID, error) {
	if gatewayID == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(gatewayID)
	if err != nil {
		return nil, errors.Validation("invalid gateway id %q", gatewayID)
	}
	if _, err := s.devices.GetByID(ctx, oid); err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NotFound("gateway", gatewayID)
		}
		return nil, err
	}
	return &oid, nil
}

// compensateDeviceInsert rolls back the local pending insert
func (s *DeviceService) compensateDeviceInsert(ctx context.Context, opID string, localID primitive.ObjectID) {
	s.metrics.CompensationsTotal.WithLabelValues("register_device").Inc()
	if _, err := s.devices.Delete(ctx, localID); err != nil {
		s.logger.Error("Device compensation delete failed, pending record may be orphaned",
			zap.String("op_id", opID),
			zap.String("device_id", localID.Hex()),
			zap.Error(err))
		return
	}
	s.logger.Warn("Device registration compensated",
		zap.String("op_id", opID),
		zap.String("device_id", localID.Hex()))
}

// compensateDeviceRemote rolls back the remote device creation, best effort
func (s *DeviceService) compensateDeviceRemote(ctx context.Context, opID, devEUI string) {
	if err := s.remote.DeleteDevice(ctx, devEUI); err != nil {
		s.logger.Error("Remote device compensation delete failed",
			zap.String("op_id", opID),
			zap.String("dev_eui", devEUI),
			zap.Error(err))
	}
}
