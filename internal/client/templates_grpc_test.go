package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

func TestDeviceProfileFromTemplateBody_OverridesIdentity(t *testing.T) {
	body := json.RawMessage(`{
		"id": "template-id-must-not-leak",
		"name": "Template Display Name",
		"tenantId": "template-tenant",
		"region": "US915",
		"macVersion": "LORAWAN_1_0_3",
		"supportsOtaa": true
	}`)

	profile, err := DeviceProfileFromTemplateBody(body, "remote-tenant-1", "acme-em300")

	require.NoError(t, err)
	assert.Empty(t, profile.Id)
	assert.Equal(t, "acme-em300", profile.Name)
	assert.Equal(t, "remote-tenant-1", profile.TenantId)
	assert.True(t, profile.SupportsOtaa)
}

func TestDeviceProfileFromTemplateBody_DiscardsUnknownFields(t *testing.T) {
	// Template-only fields like vendor and firmware are not part of the
	// profile schema and must not fail the decode.
	body := json.RawMessage(`{
		"name": "tpl",
		"vendor": "milesight",
		"firmware": "1.0.2",
		"region": "EU868"
	}`)

	profile, err := DeviceProfileFromTemplateBody(body, "remote-tenant-1", "p")

	require.NoError(t, err)
	assert.Equal(t, "p", profile.Name)
}

func TestDeviceProfileFromTemplateBody_InvalidJSON(t *testing.T) {
	_, err := DeviceProfileFromTemplateBody(json.RawMessage(`{not json`), "remote-tenant-1", "p")

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
