package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
	"github.com/cdukcom/iot-platform-multitenant/internal/metrics"
	"github.com/cdukcom/iot-platform-multitenant/internal/model"
	"github.com/cdukcom/iot-platform-multitenant/internal/store"
)

const templateBodyJSON = `{"name":"tpl","region":"US915","macVersion":"LORAWAN_1_0_3"}`

func newProfileService(
	profiles store.ProfileStore,
	cache store.TemplateCacheStore,
	tenants *MockTenantStore,
	catalog *MockTemplateCatalog,
) *ProfileService {
	return NewProfileService(profiles, cache, tenants, catalog, metrics.NewTestMetrics(), zap.NewNop())
}

func TestProfileService_EnsureDeviceProfile_CreatedThenReused(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	cache := store.NewMemoryTemplateCacheStore()
	mockCatalog := new(MockTemplateCatalog)

	mockCatalog.On("GetTemplate", mock.Anything, "tpl-us915").
		Return(&client.Template{ID: "tpl-1", Name: "tpl-us915", Body: json.RawMessage(templateBodyJSON)}, nil).Once()
	mockCatalog.On("CreateProfileFromTemplate", mock.Anything, "remote-tenant-1", "acme-em300", json.RawMessage(templateBodyJSON)).
		Return("profile-1", nil).Once()

	service := newProfileService(profiles, cache, new(MockTenantStore), mockCatalog)
	ctx := context.Background()

	first, err := service.EnsureDeviceProfile(ctx, "remote-tenant-1", "em300", "tpl-us915", "acme-em300")
	assert.NoError(t, err)
	assert.Equal(t, ActionCreated, first.Action)
	assert.Equal(t, "profile-1", first.Profile.RemoteProfileID)
	assert.Equal(t, "EM300", first.Profile.Model)

	// Second call with a differently-cased model short-circuits before any
	// remote call.
	second, err := service.EnsureDeviceProfile(ctx, "remote-tenant-1", "EM300", "tpl-us915", "acme-em300")
	assert.NoError(t, err)
	assert.Equal(t, ActionReused, second.Action)
	assert.Equal(t, "profile-1", second.Profile.RemoteProfileID)
	mockCatalog.AssertExpectations(t)
}

func TestProfileService_EnsureDeviceProfile_CacheMissFetchesAndWritesBack(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	cache := store.NewMemoryTemplateCacheStore()
	mockCatalog := new(MockTemplateCatalog)

	mockCatalog.On("GetTemplate", mock.Anything, "tpl-us915").
		Return(&client.Template{ID: "tpl-1", Name: "tpl-us915", Body: json.RawMessage(templateBodyJSON)}, nil).Once()
	mockCatalog.On("CreateProfileFromTemplate", mock.Anything, "remote-tenant-1", mock.Anything, json.RawMessage(templateBodyJSON)).
		Return("profile-1", nil)

	service := newProfileService(profiles, cache, new(MockTenantStore), mockCatalog)
	ctx := context.Background()

	_, err := service.EnsureDeviceProfile(ctx, "remote-tenant-1", "em300", "tpl-us915", "acme-em300")
	assert.NoError(t, err)

	entry, err := cache.Get(ctx, "tpl-us915")
	assert.NoError(t, err)
	assert.JSONEq(t, templateBodyJSON, string(entry.Body))

	// A second model under the same template is served from the cache: the
	// remote catalog is fetched exactly once.
	_, err = service.EnsureDeviceProfile(ctx, "remote-tenant-1", "em310", "tpl-us915", "acme-em310")
	assert.NoError(t, err)
	mockCatalog.AssertExpectations(t)
}

func TestProfileService_EnsureDeviceProfile_LocalTenantRefResolved(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	cache := store.NewMemoryTemplateCacheStore()
	mockTenants := new(MockTenantStore)
	mockCatalog := new(MockTemplateCatalog)

	tenant := &model.Tenant{Name: "Acme", RemoteTenantID: "remote-tenant-9"}
	mockTenants.On("GetByID", mock.Anything, mock.Anything).Return(tenant, nil)
	mockCatalog.On("GetTemplate", mock.Anything, "tpl-us915").
		Return(&client.Template{ID: "tpl-1", Name: "tpl-us915", Body: json.RawMessage(templateBodyJSON)}, nil)
	mockCatalog.On("CreateProfileFromTemplate", mock.Anything, "remote-tenant-9", "acme-em300", mock.Anything).
		Return("profile-1", nil)

	service := newProfileService(profiles, cache, mockTenants, mockCatalog)

	result, err := service.EnsureDeviceProfile(context.Background(),
		"64b0c8a1f2e4d6a7b8c9d0e1", "em300", "tpl-us915", "acme-em300")

	assert.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	mockCatalog.AssertExpectations(t)
}

func TestProfileService_EnsureDeviceProfile_PendingLocalTenantRejected(t *testing.T) {
	mockTenants := new(MockTenantStore)
	mockTenants.On("GetByID", mock.Anything, mock.Anything).
		Return(&model.Tenant{Name: "Acme"}, nil)

	service := newProfileService(store.NewMemoryProfileStore(), store.NewMemoryTemplateCacheStore(), mockTenants, new(MockTemplateCatalog))

	_, err := service.EnsureDeviceProfile(context.Background(),
		"64b0c8a1f2e4d6a7b8c9d0e1", "em300", "tpl-us915", "acme-em300")

	assert.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestProfileService_EnsureDeviceProfile_MissingInputs(t *testing.T) {
	service := newProfileService(store.NewMemoryProfileStore(), store.NewMemoryTemplateCacheStore(), new(MockTenantStore), new(MockTemplateCatalog))
	ctx := context.Background()

	_, err := service.EnsureDeviceProfile(ctx, "", "em300", "tpl", "p")
	assert.True(t, errors.IsValidation(err))

	_, err = service.EnsureDeviceProfile(ctx, "remote-tenant-1", "  ", "tpl", "p")
	assert.True(t, errors.IsValidation(err))

	_, err = service.EnsureDeviceProfile(ctx, "remote-tenant-1", "em300", "", "p")
	assert.True(t, errors.IsValidation(err))

	_, err = service.EnsureDeviceProfile(ctx, "remote-tenant-1", "em300", "tpl", "")
	assert.True(t, errors.IsValidation(err))
}

func TestProfileService_EnsureDeviceProfile_LosingInsertRaceReturnsWinner(t *testing.T) {
	mockProfiles := new(MockProfileStore)
	cache := store.NewMemoryTemplateCacheStore()
	mockCatalog := new(MockTemplateCatalog)

	winner := &model.DeviceProfile{
		TenantRef:       "remote-tenant-1",
		Model:           "EM300",
		RemoteProfileID: "profile-winner",
	}

	// Not found on the idempotency pre-check, duplicate on insert, winner
	// on the re-read.
	mockProfiles.On("GetByTenantModel", mock.Anything, "remote-tenant-1", "EM300").
		Return(nil, store.ErrNotFound).Once()
	mockCatalog.On("GetTemplate", mock.Anything, "tpl-us915").
		Return(&client.Template{ID: "tpl-1", Name: "tpl-us915", Body: json.RawMessage(templateBodyJSON)}, nil)
	mockCatalog.On("CreateProfileFromTemplate", mock.Anything, "remote-tenant-1", "acme-em300", mock.Anything).
		Return("profile-loser", nil)
	mockProfiles.On("Insert", mock.Anything, mock.AnythingOfType("*model.DeviceProfile")).
		Return(store.ErrDuplicateKey)
	mockProfiles.On("GetByTenantModel", mock.Anything, "remote-tenant-1", "EM300").
		Return(winner, nil).Once()

	service := newProfileService(mockProfiles, cache, new(MockTenantStore), mockCatalog)

	result, err := service.EnsureDeviceProfile(context.Background(),
		"remote-tenant-1", "em300", "tpl-us915", "acme-em300")

	assert.NoError(t, err)
	assert.Equal(t, ActionReused, result.Action)
	assert.Equal(t, "profile-winner", result.Profile.RemoteProfileID)
	mockProfiles.AssertExpectations(t)
}

func TestProfileService_EnsureDeviceProfile_ConcurrentUpsertsCreateOnce(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	cache := store.NewMemoryTemplateCacheStore()
	mockCatalog := new(MockTemplateCatalog)

	var remoteCreates int64
	mockCatalog.On("GetTemplate", mock.Anything, "tpl-us915").
		Return(&client.Template{ID: "tpl-1", Name: "tpl-us915", Body: json.RawMessage(templateBodyJSON)}, nil)
	mockCatalog.On("CreateProfileFromTemplate", mock.Anything, "remote-tenant-1", "acme-em300", mock.Anything).
		Run(func(args mock.Arguments) {
			atomic.AddInt64(&remoteCreates, 1)
		}).
		Return("profile-1", nil)

	service := newProfileService(profiles, cache, new(MockTenantStore), mockCatalog)
	ctx := context.Background()

	const workers = 8
	results := make([]*EnsureResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.EnsureDeviceProfile(ctx,
				"remote-tenant-1", "em300", "tpl-us915", "acme-em300")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		assert.NoError(t, errs[i], fmt.Sprintf("worker %d", i))
		if results[i].Action == ActionCreated {
			created++
		}
	}
	// Exactly one caller observes the creation; everyone converges on the
	// same snapshot.
	assert.Equal(t, 1, created)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&remoteCreates), int64(1))
	final, err := profiles.GetByTenantModel(ctx, "remote-tenant-1", "EM300")
	assert.NoError(t, err)
	for i := 0; i < workers; i++ {
		assert.Equal(t, final.RemoteProfileID, results[i].Profile.RemoteProfileID)
	}
}

func TestProfileService_EnsureDeviceProfile_CatalogFailurePropagates(t *testing.T) {
	mockCatalog := new(MockTemplateCatalog)
	mockCatalog.On("GetTemplate", mock.Anything, "tpl-missing").
		Return(nil, errors.NotFound("template", "tpl-missing"))

	service := newProfileService(store.NewMemoryProfileStore(), store.NewMemoryTemplateCacheStore(), new(MockTenantStore), mockCatalog)

	_, err := service.EnsureDeviceProfile(context.Background(),
		"remote-tenant-1", "em300", "tpl-missing", "acme-em300")

	assert.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
