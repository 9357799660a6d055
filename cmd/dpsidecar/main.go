// dpsidecar is the isolation sidecar for device profile template and
// device creation operations. It is built and deployed with its own
// generated stub set so the coordinator never loads two incompatible
// schema versions into one process.
//
// Protocol: one subcommand per invocation, flag-value argument pairs,
// exactly one JSON object on stdout. Exit code 0 means success; any
// failure exits non-zero after printing {"ok": false, "error": ...}.
// Each invocation is stateless.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chirpstack/chirpstack/api/go/v4/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

const callTimeout = 30 * time.Second

var (
	flagLimit        int
	flagSearch       string
	flagName         string
	flagTenantID     string
	flagProfileName  string
	flagTemplateJSON string

	flagDevEUI        string
	flagDeviceName    string
	flagDescription   string
	flagApplicationID string
	flagDPID          string
)

var rootCmd = &cobra.Command{
	Use:           "dpsidecar",
	Short:         "Device profile template sidecar",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List device profile templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, conn *grpc.ClientConn) (interface{}, error) {
			catalog := newCatalog(conn)
			items, err := catalog.ListTemplates(ctx, flagLimit, flagSearch)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"ok":          true,
				"total_count": len(items),
				"items":       items,
			}, nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch a template body by exact name",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, conn *grpc.ClientConn) (interface{}, error) {
			catalog := newCatalog(conn)
			template, err := catalog.GetTemplate(ctx, flagName)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"ok":            true,
				"template":      json.RawMessage(template.Body),
				"template_id":   template.ID,
				"template_name": template.Name,
			}, nil
		})
	},
}

var createFromTemplateCmd = &cobra.Command{
	Use:   "create-from-template",
	Short: "Create a device profile from a template body",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, conn *grpc.ClientConn) (interface{}, error) {
			catalog := newCatalog(conn)
			profileID, err := catalog.CreateProfileFromTemplate(
				ctx, flagTenantID, flagProfileName, json.RawMessage(flagTemplateJSON))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"ok":                true,
				"device_profile_id": profileID,
			}, nil
		})
	},
}

var createDeviceCmd = &cobra.Command{
	Use:   "create-device",
	Short: "Create a device under an application",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, conn *grpc.ClientConn) (interface{}, error) {
			devices := api.NewDeviceServiceClient(conn)
			_, err := devices.Create(ctx, &api.CreateDeviceRequest{
				Device: &api.Device{
					DevEui:          flagDevEUI,
					Name:            flagDeviceName,
					Description:     flagDescription,
					ApplicationId:   flagApplicationID,
					DeviceProfileId: flagDPID,
				},
			})
			if err != nil {
				return nil, errors.FromRPC("device.create", err)
			}
			return map[string]interface{}{
				"ok":      true,
				"dev_eui": flagDevEUI,
			}, nil
		})
	},
}

func init() {
	listCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum templates to return")
	listCmd.Flags().StringVar(&flagSearch, "search", "", "case-insensitive name filter")

	getCmd.Flags().StringVar(&flagName, "name", "", "exact template name")
	getCmd.MarkFlagRequired("name")

	createFromTemplateCmd.Flags().StringVar(&flagTenantID, "tenant-id", "", "remote tenant id")
	createFromTemplateCmd.Flags().StringVar(&flagProfileName, "profile-name", "", "device profile name")
	createFromTemplateCmd.Flags().StringVar(&flagTemplateJSON, "template-json", "", "template body JSON")
	createFromTemplateCmd.MarkFlagRequired("tenant-id")
	createFromTemplateCmd.MarkFlagRequired("profile-name")
	createFromTemplateCmd.MarkFlagRequired("template-json")

	createDeviceCmd.Flags().StringVar(&flagDevEUI, "dev-eui", "", "device EUI, 16 hex characters")
	createDeviceCmd.Flags().StringVar(&flagDeviceName, "name", "", "device name")
	createDeviceCmd.Flags().StringVar(&flagDescription, "description", "", "device description")
	createDeviceCmd.Flags().StringVar(&flagApplicationID, "application-id", "", "remote application id")
	createDeviceCmd.Flags().StringVar(&flagDPID, "device-profile-id", "", "remote device profile id")
	createDeviceCmd.MarkFlagRequired("dev-eui")
	createDeviceCmd.MarkFlagRequired("application-id")
	createDeviceCmd.MarkFlagRequired("device-profile-id")

	rootCmd.AddCommand(listCmd, getCmd, createFromTemplateCmd, createDeviceCmd)
}

// newCatalog binds the in-process catalog implementation onto this
// process's own stub set. Isolation comes from the process boundary, not
// from a different code path.
func newCatalog(conn *grpc.ClientConn) *client.InProcessCatalog {
	cs := client.WrapConn(conn, callTimeout, zap.NewNop())
	return client.NewInProcessCatalog(cs, zap.NewNop())
}

// run dials the remote service, executes one operation and prints its
// JSON reply
func run(op func(ctx context.Context, conn *grpc.ClientConn) (interface{}, error)) error {
	address := os.Getenv("CHIRPSTACK_GRPC_ADDRESS")
	if address == "" {
		address = "localhost:8080"
	}
	token := os.Getenv("CHIRPSTACK_API_TOKEN")
	if token == "" {
		token = os.Getenv("CHIRPSTACK_API_KEY")
	}
	if token == "" {
		return emitError(errors.Validation("CHIRPSTACK_API_TOKEN is not set"))
	}

	conn, err := grpc.Dial(
		address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(client.BearerTokenInterceptor(token)),
	)
	if err != nil {
		return emitError(errors.RemoteTransport("dial", "failed to connect to provisioning service", err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	reply, err := op(ctx, conn)
	if err != nil {
		return emitError(err)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return emitError(errors.Validation("failed to encode reply: %v", err))
	}
	fmt.Println(string(out))
	return nil
}

// emitError prints the failure envelope and reports it to cobra
func emitError(err error) error {
	envelope := map[string]interface{}{
		"ok":    false,
		"error": err.Error(),
	}
	if class := errors.ClassOf(err); class != 0 {
		envelope["class"] = class.String()
	}
	out, _ := json.Marshal(envelope)
	fmt.Println(string(out))
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
