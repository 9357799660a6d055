package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeTenantName(t *testing.T) {
	tests := []struct {
		name       string
		ownerLabel string
		label      string
		want       string
	}{
		{
			name:       "email local part with spaced label",
			ownerLabel: "alice@example.com",
			label:      "Sunset Ridge",
			want:       "alice_sunset_ridge",
		},
		{
			name:       "plain uid owner",
			ownerLabel: "uid123",
			label:      "Acme",
			want:       "uid123_acme",
		},
		{
			name:       "symbol runs collapse",
			ownerLabel: "bob.smith+test@example.com",
			label:      "Torre --- Norte!!",
			want:       "bob_smith_test_torre_norte",
		},
		{
			name:       "empty label",
			ownerLabel: "carol@example.com",
			label:      "",
			want:       "carol",
		},
		{
			name:       "empty owner",
			ownerLabel: "",
			label:      "Acme",
			want:       "acme",
		},
		{
			name:       "both empty",
			ownerLabel: "",
			label:      "!!!",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeTenantName(tt.ownerLabel, tt.label))
		})
	}
}

func TestComposeTenantName_Deterministic(t *testing.T) {
	a := ComposeTenantName("alice@example.com", "Sunset Ridge")
	b := ComposeTenantName("alice@example.com", "Sunset Ridge")
	assert.Equal(t, a, b)
}

func TestComposeTenantName_TruncatesLongNames(t *testing.T) {
	long := strings.Repeat("x", 80)
	got := ComposeTenantName("alice@example.com", long)

	assert.LessOrEqual(t, len(got), 64)
	assert.False(t, strings.HasSuffix(got, "_"))
}
