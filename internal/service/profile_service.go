package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
	"github.com/cdukcom/iot-platform-multitenant/internal/metrics"
	"github.com/cdukcom/iot-platform-multitenant/internal/model"
	"github.com/cdukcom/iot-platform-multitenant/internal/store"
	"github.com/cdukcom/iot-platform-multitenant/internal/validation"
)

// Upsert result actions
const (
	ActionCreated = "created"
	ActionReused  = "reused"
)

// EnsureResult is the outcome of a device profile upsert
type EnsureResult struct {
	Action  string
	Profile *model.DeviceProfile
}

// ProfileService idempotently instantiates device profiles from named
// templates. (tenant, model) is the idempotency key; template bodies are
// cached lazily and never refreshed.
type ProfileService struct {
	profiles store.ProfileStore
	cache    store.TemplateCacheStore
	tenants  store.TenantStore
	catalog  client.TemplateCatalog
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewProfileService creates a new profile upsert service
func NewProfileService(
	profiles store.ProfileStore,
	cache store.TemplateCacheStore,
	tenants store.TenantStore,
	catalog client.TemplateCatalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		cache:    cache,
		tenants:  tenants,
		catalog:  catalog,
		metrics:  m,
		logger:   logger,
	}
}

// EnsureDeviceProfile returns the profile snapshot for (tenantRef,
// deviceModel), creating it from the named template on first use. The
// tenantRef accepts either a local store id or an already-remote id.
// A losing insert race is resolved by re-reading the winner; the caller
// never sees the conflict.
func (s *ProfileService) EnsureDeviceProfile(ctx context.Context, tenantRef, deviceModel, templateName, profileName string) (*EnsureResult, error) {
	if err := validation.NonEmpty("tenant_id", tenantRef); err != nil {
		return nil, err
	}
	deviceModel = validation.NormalizeModel(deviceModel)
	if err := validation.NonEmpty("model", deviceModel); err != nil {
		return nil, err
	}
	if err := validation.NonEmpty("template_name", templateName); err != nil {
		return nil, err
	}
	if err := validation.NonEmpty("profile_name", profileName); err != nil {
		return nil, err
	}

	// Idempotency check: an existing snapshot short-circuits before any
	// remote call.
	existing, err := s.profiles.GetByTenantModel(ctx, tenantRef, deviceModel)
	if err == nil {
		return &EnsureResult{Action: ActionReused, Profile: existing}, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	remoteTenantID, err := s.resolveTenantRef(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	body, err := s.templateBody(ctx, templateName)
	if err != nil {
		return nil, err
	}

	remoteProfileID, err := s.catalog.CreateProfileFromTemplate(ctx, remoteTenantID, profileName, body)
	if err != nil {
		s.metrics.RemoteCallErrors.WithLabelValues("device_profile.create", errors.ClassOf(err).String()).Inc()
		return nil, err
	}

	snapshot := &model.DeviceProfile{
		TenantRef:       tenantRef,
		Model:           deviceModel,
		TemplateName:    templateName,
		ProfileName:     profileName,
		RemoteProfileID: remoteProfileID,
	}
	if err := s.profiles.Insert(ctx, snapshot); err != nil {
		if err == store.ErrDuplicateKey {
			// A concurrent upsert won the race. Return the winner.
			s.metrics.UpsertRacesResolved.Inc()
			winner, readErr := s.profiles.GetByTenantModel(ctx, tenantRef, deviceModel)
			if readErr != nil {
				return nil, errors.ConsistencyRace("upsert race winner vanished", readErr)
			}
			s.logger.Info("Profile upsert race resolved by re-read",
				zap.String("tenant_ref", tenantRef),
				zap.String("model", deviceModel))
			return &EnsureResult{Action: ActionReused, Profile: winner}, nil
		}
		return nil, err
	}

	s.logger.Info("Device profile created from template",
		zap.String("tenant_ref", tenantRef),
		zap.String("model", deviceModel),
		zap.String("template_name", templateName),
		zap.String("device_profile_id", remoteProfileID))
	return &EnsureResult{Action: ActionCreated, Profile: snapshot}, nil
}

// resolveTenantRef maps a tenant reference to a remote tenant id. A
// 24-hex reference is a local store id and must belong to a committed
// tenant; anything else is taken as already remote.
func (s *ProfileService) resolveTenantRef(ctx context.Context, tenantRef string) (string, error) {
	if !validation.IsLocalID(tenantRef) {
		return tenantRef, nil
	}

	oid, err := primitive.ObjectIDFromHex(tenantRef)
	if err != nil {
		return "", errors.Validation("invalid tenant id %q", tenantRef)
	}
	tenant, err := s.tenants.GetByID(ctx, oid)
	if err != nil {
		if err == store.ErrNotFound {
			return "", errors.NotFound("tenant", tenantRef)
		}
		return "", err
	}
	if !tenant.Committed() {
		return "", errors.Validation("tenant %s has no remote counterpart", tenantRef)
	}
	return tenant.RemoteTenantID, nil
}

// templateBody fetches a template body through the cache. Misses go to
// the remote catalog and are written back; a cache write failure only
// loses the optimization, not the operation.
func (s *ProfileService) templateBody(ctx context.Context, templateName string) ([]byte, error) {
	entry, err := s.cache.Get(ctx, templateName)
	if err == nil {
		s.metrics.TemplateCacheHits.Inc()
		return entry.Body, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	s.metrics.TemplateCacheMisses.Inc()
	template, err := s.catalog.GetTemplate(ctx, templateName)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, &model.TemplateCacheEntry{
		Name:      templateName,
		Body:      template.Body,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to cache template body",
			zap.String("template_name", templateName),
			zap.Error(err))
	}
	return template.Body, nil
}
