package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/chirpstack/chirpstack/api/go/v4/api"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

// InProcessCatalog implements TemplateCatalog with stubs bound in the
// main process, sharing the provisioning client's channel. Used when the
// deployed stub sets are schema-compatible.
type InProcessCatalog struct {
	templates api.DeviceProfileTemplateServiceClient
	profiles  api.DeviceProfileServiceClient
	cs        *ChirpStack
	logger    *zap.Logger
}

// NewInProcessCatalog binds template stubs onto the provisioning client's
// connection
func NewInProcessCatalog(cs *ChirpStack, logger *zap.Logger) *InProcessCatalog {
	return &InProcessCatalog{
		templates: api.NewDeviceProfileTemplateServiceClient(cs.Conn()),
		profiles:  api.NewDeviceProfileServiceClient(cs.Conn()),
		cs:        cs,
		logger:    logger,
	}
}

// ListTemplates lists up to limit templates, filtered client-side by a
// case-insensitive substring search. The remote listing has no search
// parameter.
func (c *InProcessCatalog) ListTemplates(ctx context.Context, limit int, search string) ([]TemplateInfo, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	var (
		items  []TemplateInfo
		offset uint32
	)
	for len(items) < limit {
		var resp *api.ListDeviceProfileTemplatesResponse
		err := c.cs.retryRead(ctx, func() error {
			callCtx, cancel := c.cs.callCtx(ctx)
			defer cancel()

			r, err := c.templates.List(callCtx, &api.ListDeviceProfileTemplatesRequest{
				Limit:  c.cs.pageSize,
				Offset: offset,
			})
			if err != nil {
				return errors.FromRPC("device_profile_template.list", err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Result {
			items = append(items, TemplateInfo{ID: item.Id, Name: item.Name})
		}

		offset += uint32(len(resp.Result))
		if len(resp.Result) == 0 || offset >= resp.TotalCount {
			break
		}
	}

	if search != "" {
		needle := strings.ToLower(search)
		filtered := items[:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), needle) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetTemplate scans the template catalog for an exact name match and
// fetches the full template body
func (c *InProcessCatalog) GetTemplate(ctx context.Context, name string) (*Template, error) {
	var offset uint32
	for {
		var resp *api.ListDeviceProfileTemplatesResponse
		err := c.cs.retryRead(ctx, func() error {
			callCtx, cancel := c.cs.callCtx(ctx)
			defer cancel()

			r, err := c.templates.List(callCtx, &api.ListDeviceProfileTemplatesRequest{
				Limit:  c.cs.pageSize,
				Offset: offset,
			})
			if err != nil {
				return errors.FromRPC("device_profile_template.list", err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Result {
			if item.Name != name {
				continue
			}

			callCtx, cancel := c.cs.callCtx(ctx)
			got, err := c.templates.Get(callCtx, &api.GetDeviceProfileTemplateRequest{Id: item.Id})
			cancel()
			if err != nil {
				return nil, errors.FromRPC("device_profile_template.get", err)
			}

			body, err := protojson.Marshal(got.DeviceProfileTemplate)
			if err != nil {
				return nil, errors.RemoteRejected("device_profile_template.get", "failed to encode template body", err)
			}
			return &Template{ID: item.Id, Name: item.Name, Body: body}, nil
		}

		offset += uint32(len(resp.Result))
		if len(resp.Result) == 0 || offset >= resp.TotalCount {
			return nil, errors.NotFound("device profile template", name)
		}
	}
}

// CreateProfileFromTemplate instantiates a device profile from a template
// body. Unknown template-only fields are discarded; the name and tenant
// are always overridden.
func (c *InProcessCatalog) CreateProfileFromTemplate(ctx context.Context, tenantRemoteID, profileName string, body json.RawMessage) (string, error) {
	profile, err := DeviceProfileFromTemplateBody(body, tenantRemoteID, profileName)
	if err != nil {
		return "", err
	}

	callCtx, cancel := c.cs.callCtx(ctx)
	defer cancel()

	resp, err := c.profiles.Create(callCtx, &api.CreateDeviceProfileRequest{DeviceProfile: profile})
	if err != nil {
		return "", errors.FromRPC("device_profile.create", err)
	}

	c.logger.Info("Remote device profile created from template",
		zap.String("device_profile_id", resp.Id),
		zap.String("profile_name", profileName),
		zap.String("remote_tenant_id", tenantRemoteID))
	return resp.Id, nil
}

// CreateDevice delegates to the provisioning client over the shared channel
func (c *InProcessCatalog) CreateDevice(ctx context.Context, req DeviceCreate) error {
	return c.cs.CreateDevice(ctx, req)
}

// DeviceProfileFromTemplateBody decodes a template body into a device
// profile, dropping the template's own identity fields and overriding the
// name and tenant.
func DeviceProfileFromTemplateBody(body json.RawMessage, tenantRemoteID, profileName string) (*api.DeviceProfile, error) {
	var profile api.DeviceProfile
	unmarshaler := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := unmarshaler.Unmarshal(body, &profile); err != nil {
		return nil, errors.Validation("template body is not a valid device profile: %v", err)
	}

	// The body carries the template's id and display name; neither may
	// leak into the created profile.
	profile.Id = ""
	profile.Name = profileName
	profile.TenantId = tenantRemoteID
	return &profile, nil
}
