package client

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

// SidecarCatalog implements TemplateCatalog by spawning an isolated child
// process per call. The child carries its own stub set, so a schema
// version skew between template stubs and the main client's stubs never
// loads two incompatible generated sets into one process.
//
// Wire contract: `<program> <subcommand> --flag value ...`; the child
// prints exactly one JSON object to stdout and exits zero on success, or
// exits non-zero with either a JSON error object or raw diagnostic text.
// Each invocation is stateless.
type SidecarCatalog struct {
	program string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSidecarCatalog creates a catalog backed by the sidecar program
func NewSidecarCatalog(program string, timeout time.Duration, logger *zap.Logger) *SidecarCatalog {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SidecarCatalog{
		program: program,
		timeout: timeout,
		logger:  logger,
	}
}

// sidecarReply is the envelope every sidecar subcommand prints
type sidecarReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Class string `json:"class,omitempty"`

	TotalCount      int             `json:"total_count,omitempty"`
	Items           []TemplateInfo  `json:"items,omitempty"`
	Template        json.RawMessage `json:"template,omitempty"`
	TemplateID      string          `json:"template_id,omitempty"`
	TemplateName    string          `json:"template_name,omitempty"`
	DeviceProfileID string          `json:"device_profile_id,omitempty"`
	DevEUI          string          `json:"dev_eui,omitempty"`
}

// run invokes one sidecar subcommand and decodes its single JSON reply
func (c *SidecarCatalog) run(ctx context.Context, subcommand string, args ...string) (*sidecarReply, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callID := uuid.NewString()
	argv := append([]string{subcommand}, args...)
	cmd := exec.CommandContext(runCtx, c.program, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("Invoking sidecar",
		zap.String("call_id", callID),
		zap.String("program", c.program),
		zap.String("subcommand", subcommand))

	runErr := cmd.Run()
	reply, decodeErr := decodeSidecarReply(stdout.Bytes(), stderr.Bytes(), runErr)
	if decodeErr != nil {
		c.logger.Error("Sidecar call failed",
			zap.String("call_id", callID),
			zap.String("subcommand", subcommand),
			zap.Error(decodeErr))
		return nil, decodeErr
	}
	return reply, nil
}

// decodeSidecarReply interprets the sidecar's output streams and exit
// status. A failure without parseable JSON is wrapped as an opaque error
// carrying the raw text.
func decodeSidecarReply(stdout, stderr []byte, runErr error) (*sidecarReply, error) {
	var reply sidecarReply
	jsonErr := json.Unmarshal(bytes.TrimSpace(stdout), &reply)

	if runErr == nil && jsonErr == nil && reply.OK {
		return &reply, nil
	}

	// Prefer the structured error if the child managed to emit one, on
	// either stream.
	if jsonErr != nil {
		jsonErr = json.Unmarshal(bytes.TrimSpace(stderr), &reply)
	}
	if jsonErr == nil && reply.Error != "" {
		return nil, sidecarError(reply.Class, reply.Error)
	}

	raw := strings.TrimSpace(string(stderr))
	if raw == "" {
		raw = strings.TrimSpace(string(stdout))
	}
	if raw == "" && runErr != nil {
		raw = runErr.Error()
	}
	return nil, errors.RemoteTransport("sidecar", "sidecar produced no parseable reply", nil).
		WithDetail("raw_output", raw)
}

// sidecarError rebuilds a typed error from the sidecar's class tag
func sidecarError(class, message string) error {
	switch class {
	case errors.ClassNotFound.String():
		return errors.New(errors.ClassNotFound, message, nil)
	case errors.ClassValidation.String():
		return errors.New(errors.ClassValidation, message, nil)
	case errors.ClassRemoteRejected.String():
		return errors.RemoteRejected("sidecar", message, nil)
	default:
		return errors.RemoteTransport("sidecar", message, nil)
	}
}

// ListTemplates lists templates through the sidecar
func (c *SidecarCatalog) ListTemplates(ctx context.Context, limit int, search string) ([]TemplateInfo, error) {
	args := []string{"--limit", strconv.Itoa(limit)}
	if search != "" {
		args = append(args, "--search", search)
	}
	reply, err := c.run(ctx, "list", args...)
	if err != nil {
		return nil, err
	}
	return reply.Items, nil
}

// GetTemplate fetches a template by exact name through the sidecar
func (c *SidecarCatalog) GetTemplate(ctx context.Context, name string) (*Template, error) {
	reply, err := c.run(ctx, "get", "--name", name)
	if err != nil {
		return nil, err
	}
	return &Template{
		ID:   reply.TemplateID,
		Name: reply.TemplateName,
		Body: reply.Template,
	}, nil
}

// CreateProfileFromTemplate instantiates a device profile through the sidecar
func (c *SidecarCatalog) CreateProfileFromTemplate(ctx context.Context, tenantRemoteID, profileName string, body json.RawMessage) (string, error) {
	reply, err := c.run(ctx, "create-from-template",
		"--tenant-id", tenantRemoteID,
		"--profile-name", profileName,
		"--template-json", string(body),
	)
	if err != nil {
		return "", err
	}
	return reply.DeviceProfileID, nil
}

// CreateDevice creates a device through the sidecar
func (c *SidecarCatalog) CreateDevice(ctx context.Context, req DeviceCreate) error {
	_, err := c.run(ctx, "create-device",
		"--dev-eui", req.DevEUI,
		"--name", req.Name,
		"--description", req.Description,
		"--application-id", req.ApplicationID,
		"--device-profile-id", req.ProfileID,
	)
	return err
}
