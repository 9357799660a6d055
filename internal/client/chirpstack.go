package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chirpstack/chirpstack/api/go/v4/api"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

const defaultPageSize = 50

// ChirpStack implements Provisioner against the ChirpStack v4 gRPC API.
// One instance is constructed at process start and shared for the process
// lifetime; the connection is disposed at shutdown via Close.
type ChirpStack struct {
	conn     *grpc.ClientConn
	tenants  api.TenantServiceClient
	apps     api.ApplicationServiceClient
	profiles api.DeviceProfileServiceClient
	devices  api.DeviceServiceClient

	timeout     time.Duration
	pageSize    uint32
	readRetries uint64
	logger      *zap.Logger
}

// ChirpStackOptions configures the remote client
type ChirpStackOptions struct {
	Address     string
	APIToken    string
	CallTimeout time.Duration
	PageSize    int
	ReadRetries int
}

// NewChirpStack dials the remote provisioning service and builds the
// service stubs. The bearer credential rides on every call through the
// unary interceptor.
func NewChirpStack(opts ChirpStackOptions, logger *zap.Logger) (*ChirpStack, error) {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	conn, err := grpc.Dial(
		opts.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(BearerTokenInterceptor(opts.APIToken)),
	)
	if err != nil {
		return nil, errors.RemoteTransport("dial", "failed to connect to provisioning service", err)
	}

	return &ChirpStack{
		conn:        conn,
		tenants:     api.NewTenantServiceClient(conn),
		apps:        api.NewApplicationServiceClient(conn),
		profiles:    api.NewDeviceProfileServiceClient(conn),
		devices:     api.NewDeviceServiceClient(conn),
		timeout:     opts.CallTimeout,
		pageSize:    uint32(opts.PageSize),
		readRetries: uint64(opts.ReadRetries),
		logger:      logger,
	}, nil
}

// WrapConn builds a ChirpStack over an already dialed connection. Used
// by processes that own their dial options and only need the call
// plumbing (deadlines, retries, stubs).
func WrapConn(conn *grpc.ClientConn, callTimeout time.Duration, logger *zap.Logger) *ChirpStack {
	if callTimeout == 0 {
		callTimeout = 10 * time.Second
	}
	return &ChirpStack{
		conn:     conn,
		tenants:  api.NewTenantServiceClient(conn),
		apps:     api.NewApplicationServiceClient(conn),
		profiles: api.NewDeviceProfileServiceClient(conn),
		devices:  api.NewDeviceServiceClient(conn),
		timeout:  callTimeout,
		pageSize: defaultPageSize,
		logger:   logger,
	}
}

// Conn exposes the underlying connection for stub sets that share it
func (c *ChirpStack) Conn() *grpc.ClientConn {
	return c.conn
}

// State reports the connectivity state of the underlying connection
func (c *ChirpStack) State() connectivity.State {
	return c.conn.GetState()
}

// Close releases the connection
func (c *ChirpStack) Close() error {
	return c.conn.Close()
}

// callCtx applies the per-call deadline
func (c *ChirpStack) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// retryRead retries a read/list operation on transport-class failures
// only, with bounded exponential backoff. Mutating operations never go
// through here: they are not proven idempotent by the remote side.
func (c *ChirpStack) retryRead(ctx context.Context, op func() error) error {
	if c.readRetries == 0 {
		return op()
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.readRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.IsRemoteTransport(err) {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// CreateTenant creates a tenant remotely and returns its id
func (c *ChirpStack) CreateTenant(ctx context.Context, req TenantCreate) (string, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	resp, err := c.tenants.Create(callCtx, &api.CreateTenantRequest{
		Tenant: &api.Tenant{
			Name:            req.Name,
			Description:     req.Description,
			CanHaveGateways: req.CanHaveGateways,
		},
	})
	if err != nil {
		return "", errors.FromRPC("tenant.create", err)
	}

	c.logger.Info("Remote tenant created",
		zap.String("remote_tenant_id", resp.Id),
		zap.String("name", req.Name))
	return resp.Id, nil
}

// GetTenant retrieves a remote tenant by id
func (c *ChirpStack) GetTenant(ctx context.Context, remoteID string) (*RemoteTenant, error) {
	var tenant *RemoteTenant
	err := c.retryRead(ctx, func() error {
		callCtx, cancel := c.callCtx(ctx)
		defer cancel()

		resp, err := c.tenants.Get(callCtx, &api.GetTenantRequest{Id: remoteID})
		if err != nil {
			return errors.FromRPC("tenant.get", err)
		}
		tenant = &RemoteTenant{
			ID:              resp.Tenant.Id,
			Name:            resp.Tenant.Name,
			CanHaveGateways: resp.Tenant.CanHaveGateways,
		}
		return nil
	})
	return tenant, err
}

// DeleteTenant deletes a remote tenant, treating "not found" as success.
// The returned flag is false when the tenant was already absent.
func (c *ChirpStack) DeleteTenant(ctx context.Context, remoteID string) (bool, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.tenants.Delete(callCtx, &api.DeleteTenantRequest{Id: remoteID})
	if err != nil {
		perr := errors.FromRPC("tenant.delete", err)
		if errors.IsNotFound(perr) {
			c.logger.Info("Remote tenant already absent on delete",
				zap.String("remote_tenant_id", remoteID))
			return false, nil
		}
		return false, perr
	}
	return true, nil
}

// ListTenants lists remote tenants with paging and optional search
func (c *ChirpStack) ListTenants(ctx context.Context, limit, offset int, search string) ([]RemoteTenant, int64, error) {
	var (
		tenants []RemoteTenant
		total   int64
	)
	err := c.retryRead(ctx, func() error {
		callCtx, cancel := c.callCtx(ctx)
		defer cancel()

		resp, err := c.tenants.List(callCtx, &api.ListTenantsRequest{
			Limit:  uint32(limit),
			Offset: uint32(offset),
			Search: search,
		})
		if err != nil {
			return errors.FromRPC("tenant.list", err)
		}

		tenants = make([]RemoteTenant, 0, len(resp.Result))
		for _, item := range resp.Result {
			tenants = append(tenants, RemoteTenant{
				ID:              item.Id,
				Name:            item.Name,
				CanHaveGateways: item.CanHaveGateways,
			})
		}
		total = int64(resp.TotalCount)
		return nil
	})
	return tenants, total, err
}

// EnsureApplication returns the application with the exact desiredName
// under the tenant, creating it when no page of the listing contains it.
func (c *ChirpStack) EnsureApplication(ctx context.Context, tenantRemoteID, desiredName string) (string, error) {
	var offset uint32
	for {
		var resp *api.ListApplicationsResponse
		err := c.retryRead(ctx, func() error {
			callCtx, cancel := c.callCtx(ctx)
			defer cancel()

			r, err := c.apps.List(callCtx, &api.ListApplicationsRequest{
				Limit:    c.pageSize,
				Offset:   offset,
				TenantId: tenantRemoteID,
			})
			if err != nil {
				return errors.FromRPC("application.list", err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return "", err
		}

		for _, app := range resp.Result {
			if app.Name == desiredName {
				return app.Id, nil
			}
		}

		offset += uint32(len(resp.Result))
		if len(resp.Result) == 0 || offset >= resp.TotalCount {
			break
		}
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	resp, err := c.apps.Create(callCtx, &api.CreateApplicationRequest{
		Application: &api.Application{
			Name:        desiredName,
			Description: "Application for " + desiredName,
			TenantId:    tenantRemoteID,
		},
	})
	if err != nil {
		return "", errors.FromRPC("application.create", err)
	}

	c.logger.Info("Remote application created",
		zap.String("remote_app_id", resp.Id),
		zap.String("name", desiredName),
		zap.String("remote_tenant_id", tenantRemoteID))
	return resp.Id, nil
}

// DeviceProfileIDByName scans the tenant's device profiles page by page
// and returns the first exact case-sensitive name match. Exhausting every
// page without a match yields a NotFound error.
func (c *ChirpStack) DeviceProfileIDByName(ctx context.Context, profileName, tenantRemoteID string) (string, error) {
	var offset uint32
	for {
		var resp *api.ListDeviceProfilesResponse
		err := c.retryRead(ctx, func() error {
			callCtx, cancel := c.callCtx(ctx)
			defer cancel()

			r, err := c.profiles.List(callCtx, &api.ListDeviceProfilesRequest{
				Limit:    c.pageSize,
				Offset:   offset,
				TenantId: tenantRemoteID,
			})
			if err != nil {
				return errors.FromRPC("device_profile.list", err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return "", err
		}

		for _, profile := range resp.Result {
			if profile.Name == profileName {
				return profile.Id, nil
			}
		}

		offset += uint32(len(resp.Result))
		if len(resp.Result) == 0 || offset >= resp.TotalCount {
			return "", errors.NotFound("device profile", profileName).
				WithDetail("remote_tenant_id", tenantRemoteID)
		}
	}
}

// CreateDevice creates a device remotely under the given application
func (c *ChirpStack) CreateDevice(ctx context.Context, req DeviceCreate) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.devices.Create(callCtx, &api.CreateDeviceRequest{
		Device: &api.Device{
			DevEui:          req.DevEUI,
			Name:            req.Name,
			Description:     req.Description,
			ApplicationId:   req.ApplicationID,
			DeviceProfileId: req.ProfileID,
		},
	})
	if err != nil {
		return errors.FromRPC("device.create", err)
	}

	c.logger.Info("Remote device created",
		zap.String("dev_eui", req.DevEUI),
		zap.String("application_id", req.ApplicationID),
		zap.String("device_profile_id", req.ProfileID))
	return nil
}

// DeleteDevice deletes a remote device, treating "not found" as success
func (c *ChirpStack) DeleteDevice(ctx context.Context, devEUI string) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.devices.Delete(callCtx, &api.DeleteDeviceRequest{DevEui: devEUI})
	if err != nil {
		perr := errors.FromRPC("device.delete", err)
		if errors.IsNotFound(perr) {
			c.logger.Info("Remote device already absent on delete",
				zap.String("dev_eui", devEUI))
			return nil
		}
		return perr
	}
	return nil
}

// CreateDeviceKeys provisions the OTAA join credential for a device
func (c *ChirpStack) CreateDeviceKeys(ctx context.Context, req DeviceKeysCreate) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.devices.CreateKeys(callCtx, &api.CreateDeviceKeysRequest{
		DeviceKeys: &api.DeviceKeys{
			DevEui: req.DevEUI,
			AppKey: req.AppKey,
			NwkKey: req.NwkKey,
		},
	})
	if err != nil {
		return errors.FromRPC("device.create_keys", err)
	}
	return nil
}
