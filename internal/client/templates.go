package client

import (
	"context"
	"encoding/json"
)

// TemplateInfo identifies a remote device profile template
type TemplateInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Template is a named template with its opaque JSON body. The body is the
// profile field set the template prescribes; name and tenant are always
// overridden at profile creation time.
type Template struct {
	ID   string          `json:"template_id"`
	Name string          `json:"template_name"`
	Body json.RawMessage `json:"template"`
}

// TemplateCatalog is the narrow boundary for the template and device
// operations whose generated stubs may be schema-incompatible with the
// main client's stub set. Two interchangeable implementations exist: an
// in-process binding and an out-of-process sidecar call, selected by
// configuration.
type TemplateCatalog interface {
	ListTemplates(ctx context.Context, limit int, search string) ([]TemplateInfo, error)
	// GetTemplate scans the remote template catalog for an exact name
	// match and returns the template with its body.
	GetTemplate(ctx context.Context, name string) (*Template, error)
	// CreateProfileFromTemplate instantiates a device profile from a
	// template body, overriding the name and tenant fields.
	CreateProfileFromTemplate(ctx context.Context, tenantRemoteID, profileName string, body json.RawMessage) (string, error)
	CreateDevice(ctx context.Context, req DeviceCreate) error
}
