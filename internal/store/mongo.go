package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names in the system-of-record database
const (
	tenantsCollection        = "tenants"
	usersCollection          = "users"
	devicesCollection        = "devices"
	deviceKeysCollection     = "devicekeys"
	deviceProfilesCollection = "device_profiles"
	templateCacheCollection  = "dp_templates_cache"
)

// Mongo bundles the document-store-backed implementations of the store
// interfaces over a single client connection.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger

	Tenants    TenantStore
	Users      UserStore
	Devices    DeviceStore
	DeviceKeys DeviceKeyStore
	Profiles   ProfileStore
	Templates  TemplateCacheStore
}

// NewMongo connects to the document store and wires up the typed stores
func NewMongo(ctx context.Context, uri, database string, connectTimeout time.Duration, logger *zap.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client: client,
		db:     db,
		logger: logger,
	}
	m.Tenants = &MongoTenantStore{coll: db.Collection(tenantsCollection), logger: logger}
	m.Users = &MongoUserStore{coll: db.Collection(usersCollection)}
	m.Devices = &MongoDeviceStore{coll: db.Collection(devicesCollection), logger: logger}
	m.DeviceKeys = &MongoDeviceKeyStore{coll: db.Collection(deviceKeysCollection)}
	m.Profiles = &MongoProfileStore{coll: db.Collection(deviceProfilesCollection), logger: logger}
	m.Templates = &MongoTemplateCacheStore{coll: db.Collection(templateCacheCollection)}

	return m, nil
}

// EnsureIndexes creates the uniqueness constraints the sagas depend on.
// The (tenant_id, model) index on device profiles is load-bearing: it is
// what turns a concurrent upsert into a detectable duplicate-key error.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	profileIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "model", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_tenant_model"),
	}
	if _, err := m.db.Collection(deviceProfilesCollection).Indexes().CreateOne(ctx, profileIdx); err != nil {
		return fmt.Errorf("failed to create device profile index: %w", err)
	}

	deviceIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "type", Value: 1}, {Key: "dev_eui", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_tenant_type_deveui"),
	}
	if _, err := m.db.Collection(devicesCollection).Indexes().CreateOne(ctx, deviceIdx); err != nil {
		return fmt.Errorf("failed to create device index: %w", err)
	}

	templateIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_template_name"),
	}
	if _, err := m.db.Collection(templateCacheCollection).Indexes().CreateOne(ctx, templateIdx); err != nil {
		return fmt.Errorf("failed to create template cache index: %w", err)
	}

	m.logger.Info("Document store indexes ensured")
	return nil
}

// Ping verifies connectivity to the document store
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects from the document store
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
