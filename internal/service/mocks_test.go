package service

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

// MockTenantStore is a mock implementation of store.TenantStore
type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) Insert(ctx context.Context, tenant *model.Tenant) (primitive.ObjectID, error) {
	args := m.Called(ctx, tenant)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

func (m *MockTenantStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *MockTenantStore) SetRemoteRefs(ctx context.Context, id primitive.ObjectID, remoteTenantID, remoteTenantName, remoteAppID string) error {
	args := m.Called(ctx, id, remoteTenantID, remoteTenantName, remoteAppID)
	return args.Error(0)
}

func (m *MockTenantStore) SetRemoteAppID(ctx context.Context, id primitive.ObjectID, appID string) error {
	args := m.Called(ctx, id, appID)
	return args.Error(0)
}

func (m *MockTenantStore) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserStore is a mock implementation of store.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockDeviceStore is a mock implementation of store.DeviceStore
type MockDeviceStore struct {
	mock.Mock
}

func (m *MockDeviceStore) Insert(ctx context.Context, device *model.Device) (primitive.ObjectID, error) {
	args := m.Called(ctx, device)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

func (m *MockDeviceStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceStore) SetMeta(ctx context.Context, id primitive.ObjectID, meta model.DeviceMeta) error {
	args := m.Called(ctx, id, meta)
	return args.Error(0)
}

func (m *MockDeviceStore) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeviceStore) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeviceStore) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeviceStore) ListByTenant(ctx context.Context, tenantID string) ([]*model.Device, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*model.Device), args.Error(1)
}

// MockDeviceKeyStore is a mock implementation of store.DeviceKeyStore
type MockDeviceKeyStore struct {
	mock.Mock
}

func (m *MockDeviceKeyStore) GetByType(ctx context.Context, deviceType string) (*model.DeviceKey, error) {
	args := m.Called(ctx, deviceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeviceKey), args.Error(1)
}

// MockProfileStore is a mock implementation of store.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetByTenantModel(ctx context.Context, tenantRef, deviceModel string) (*model.DeviceProfile, error) {
	args := m.Called(ctx, tenantRef, deviceModel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeviceProfile), args.Error(1)
}

func (m *MockProfileStore) Insert(ctx context.Context, profile *model.DeviceProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockTemplateCacheStore is a mock implementation of store.TemplateCacheStore
type MockTemplateCacheStore struct {
	mock.Mock
}

func (m *MockTemplateCacheStore) Get(ctx context.Context, name string) (*model.TemplateCacheEntry, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateCacheEntry), args.Error(1)
}

func (m *MockTemplateCacheStore) Put(ctx context.Context, entry *model.TemplateCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockProvisioner is a mock implementation of client.Provisioner
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) CreateTenant(ctx context.Context, req client.TenantCreate) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) GetTenant(ctx context.Context, remoteID string) (*client.RemoteTenant, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.RemoteTenant), args.Error(1)
}

func (m *MockProvisioner) DeleteTenant(ctx context.Context, remoteID string) (bool, error) {
	args := m.Called(ctx, remoteID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProvisioner) ListTenants(ctx context.Context, limit, offset int, search string) ([]client.RemoteTenant, int64, error) {
	args := m.Called(ctx, limit, offset, search)
	return args.Get(0).([]client.RemoteTenant), args.Get(1).(int64), args.Error(2)
}

func (m *MockProvisioner) EnsureApplication(ctx context.Context, tenantRemoteID, desiredName string) (string, error) {
	args := m.Called(ctx, tenantRemoteID, desiredName)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) DeviceProfileIDByName(ctx context.Context, profileName, tenantRemoteID string) (string, error) {
	args := m.Called(ctx, profileName, tenantRemoteID)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) CreateDevice(ctx context.Context, req client.DeviceCreate) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockProvisioner) DeleteDevice(ctx context.Context, devEUI string) error {
	args := m.Called(ctx, devEUI)
	return args.Error(0)
}

func (m *MockProvisioner) CreateDeviceKeys(ctx context.Context, req client.DeviceKeysCreate) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockTemplateCatalog is a mock implementation of client.TemplateCatalog
type MockTemplateCatalog struct {
	mock.Mock
}

func (m *MockTemplateCatalog) ListTemplates(ctx context.Context, limit int, search string) ([]client.TemplateInfo, error) {
	args := m.Called(ctx, limit, search)
	return args.Get(0).([]client.TemplateInfo), args.Error(1)
}

func (m *MockTemplateCatalog) GetTemplate(ctx context.Context, name string) (*client.Template, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Template), args.Error(1)
}

func (m *MockTemplateCatalog) CreateProfileFromTemplate(ctx context.Context, tenantRemoteID, profileName string, body json.RawMessage) (string, error) {
	args := m.Called(ctx, tenantRemoteID, profileName, body)
	return args.String(0), args.Error(1)
}

func (m *MockTemplateCatalog) CreateDevice(ctx context.Context, req client.DeviceCreate) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
