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

// TenantService runs the tenant provisioning saga across the local
// system-of-record and the remote provisioning service. No transaction
// spans the two systems; consistency comes from the ordered sequence
// local pending write -> remote write -> local commit-patch, with a local
// compensating delete on any remote failure.
type TenantService struct {
	tenants store.TenantStore
	users   store.UserStore
	devices store.DeviceStore
	remote  client.Provisioner
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewTenantService creates a new tenant saga service
func NewTenantService(
	tenants store.TenantStore,
	users store.UserStore,
	devices store.DeviceStore,
	remote client.Provisioner,
	m *metrics.Metrics,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenants: tenants,
		users:   users,
		devices: devices,
		remote:  remote,
		metrics: m,
		logger:  logger,
	}
}

// TenantDeleteResult summarizes a tenant deletion
type TenantDeleteResult struct {
	TenantID      string
	RemoteDeleted bool
	DevicesPurged int64
}

// CreateTenant provisions a tenant in both systems and returns the local
// id. On any remote failure the local record is deleted again: a tenant
// document must never survive without its remote counterpart.
func (s *TenantService) CreateTenant(ctx context.Context, draft model.TenantDraft, ownerUID string) (string, error) {
	started := time.Now()
	opID := uuid.NewString()

	if err := validation.NonEmpty("name", draft.Name); err != nil {
		return "", err
	}
	if err := validation.NonEmpty("owner_uid", ownerUID); err != nil {
		return "", err
	}
	if draft.Plan == "" {
		draft.Plan = model.PlanFree
	}
	if draft.MaxDevices <= 0 {
		draft.MaxDevices = model.DefaultMaxDevices
	}

	tenant := &model.Tenant{
		Name:            draft.Name,
		Description:     draft.Description,
		Plan:            draft.Plan,
		MaxDevices:      draft.MaxDevices,
		CanHaveGateways: draft.CanHaveGateways,
		OwnerUID:        ownerUID,
	}

	localID, err := s.tenants.Insert(ctx, tenant)
	if err != nil {
		s.metrics.SagaTotal.WithLabelValues("create_tenant", "failure").Inc()
		return "", err
	}

	s.logger.Info("Tenant pending record inserted",
		zap.String("op_id", opID),
		zap.String("tenant_id", localID.Hex()),
		zap.String("owner_uid", ownerUID))

	composed := client.ComposeTenantName(s.ownerLabel(ctx, ownerUID), draft.Name)

	remoteTenantID, err := s.remote.CreateTenant(ctx, client.TenantCreate{
		Name:            composed,
		Description:     draft.Description,
		CanHaveGateways: draft.CanHaveGateways,
	})
	if err != nil {
		s.compensateTenantInsert(ctx, opID, localID)
		s.metrics.SagaTotal.WithLabelValues("create_tenant", "failure").Inc()
		return "", err
	}

	appID, err := s.remote.EnsureApplication(ctx, remoteTenantID, composed)
	if err != nil {
		s.compensateTenantCreate(ctx, opID, localID, remoteTenantID)
		s.metrics.SagaTotal.WithLabelValues("create_tenant", "failure").Inc()
		return "", err
	}

	if err := s.tenants.SetRemoteRefs(ctx, localID, remoteTenantID, composed, appID); err != nil {
		s.compensateTenantCreate(ctx, opID, localID, remoteTenantID)
		s.metrics.SagaTotal.WithLabelValues("create_tenant", "failure").Inc()
		return "", err
	}

	s.metrics.SagaTotal.WithLabelValues("create_tenant", "success").Inc()
	s.metrics.SagaDuration.WithLabelValues("create_tenant").Observe(time.Since(started).Seconds())

	s.logger.Info("Tenant provisioned",
		zap.String("op_id", opID),
		zap.String("tenant_id", localID.Hex()),
		zap.String("remote_tenant_id", remoteTenantID),
		zap.String("remote_tenant_name", composed),
		zap.String("remote_app_id", appID))
	return localID.Hex(), nil
}

// DeleteTenantByID removes a tenant from both systems. A remote "not
// found" counts as already deleted; any other remote failure aborts the
// whole operation before the local side is touched.
func (s *TenantService) DeleteTenantByID(ctx context.Context, tenantID string, purgeDevices bool) (*TenantDeleteResult, error) {
	oid, err := primitive.ObjectIDFromHex(tenantID)
	if err != nil {
		return nil, errors.Validation("invalid tenant id %q", tenantID)
	}

	tenant, err := s.tenants.GetByID(ctx, oid)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NotFound("tenant", tenantID)
		}
		return nil, err
	}

	result := &TenantDeleteResult{TenantID: tenantID}

	if tenant.Committed() {
		deleted, err := s.remote.DeleteTenant(ctx, tenant.RemoteTenantID)
		if err != nil {
			s.metrics.SagaTotal.WithLabelValues("delete_tenant", "failure").Inc()
			s.recordRemoteError("tenant.delete", err)
			return nil, err
		}
		result.RemoteDeleted = deleted
	}

	if purgeDevices {
		purged, err := s.devices.DeleteByTenant(ctx, tenantID)
		if err != nil {
			s.metrics.SagaTotal.WithLabelValues("delete_tenant", "failure").Inc()
			return nil, err
		}
		result.DevicesPurged = purged
	}

	deletedCount, err := s.tenants.Delete(ctx, oid)
	if err != nil {
		s.metrics.SagaTotal.WithLabelValues("delete_tenant", "failure").Inc()
		return nil, err
	}
	if deletedCount != 1 {
		// Someone else deleted the record between our read and delete.
		s.metrics.SagaTotal.WithLabelValues("delete_tenant", "failure").Inc()
		return nil, errors.NotFound("tenant", tenantID).WithDetail("concurrent_delete", true)
	}

	s.metrics.SagaTotal.WithLabelValues("delete_tenant", "success").Inc()
	s.logger.Info("Tenant deleted",
		zap.String("tenant_id", tenantID),
		zap.Bool("remote_deleted", result.RemoteDeleted),
		zap.Int64("devices_purged", result.DevicesPurged))
	return result, nil
}

// ownerLabel resolves the identity label used for name composition. A
// missing user or empty email falls back to the UID itself.
func (s *TenantService) ownerLabel(ctx context.Context, ownerUID string) string {
	user, err := s.users.GetByUID(ctx, ownerUID)
	if err != nil || user.Email == "" {
		return ownerUID
	}
	return user.Email
}

// compensateTenantInsert rolls back the local pending insert
func (s *TenantService) compensateTenantInsert(ctx context.Context, opID string, localID primitive.ObjectID) {
	s.metrics.CompensationsTotal.WithLabelValues("create_tenant").Inc()
	if _, err := s.tenants.Delete(ctx, localID); err != nil {
		s.logger.Error("Tenant compensation delete failed, pending record may be orphaned",
			zap.String("op_id", opID),
			zap.String("tenant_id", localID.Hex()),
			zap.Error(err))
		return
	}
	s.logger.Warn("Tenant creation compensated",
		zap.String("op_id", opID),
		zap.String("tenant_id", localID.Hex()))
}

// compensateTenantCreate rolls back both the local insert and the remote
// tenant after a later step failed. The remote delete is best effort.
func (s *TenantService) compensateTenantCreate(ctx context.Context, opID string, localID primitive.ObjectID, remoteTenantID string) {
	if _, err := s.remote.DeleteTenant(ctx, remoteTenantID); err != nil {
		s.logger.Error("Remote tenant compensation delete failed",
			zap.String("op_id", opID),
			zap.String("remote_tenant_id", remoteTenantID),
			zap.Error(err))
	}
	s.compensateTenantInsert(ctx, opID, localID)
}

// recordRemoteError counts a remote failure by class
func (s *TenantService) recordRemoteError(op string, err error) {
	s.metrics.RemoteCallErrors.WithLabelValues(op, errors.ClassOf(err).String()).Inc()
}
