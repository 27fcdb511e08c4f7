//go:build !integration

package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("sk_live_123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "sk_live_123")

	again, err := box.Seal("sk_live_123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per value")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_123", plain)
}

func TestSecretBox_EmptyAndLegacy(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := box.Open("whsec_plain")
	require.NoError(t, err)
	assert.Equal(t, "whsec_plain", plain)
}

func TestSecretBox_Errors(t *testing.T) {
	_, err := NewSecretBox("short")
	assert.Error(t, err)

	box, err := NewSecretBox(testKey)
	require.NoError(t, err)
	other, err := NewSecretBox("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	sealed, err := other.Seal("sk_test")
	require.NoError(t, err)
	_, err = box.Open(sealed)
	assert.True(t, errors.Is(err, ErrCiphertext))

	_, err = box.Open("v1:not-base64!")
	assert.True(t, errors.Is(err, ErrCiphertext))

	_, err = box.Open("v1:AAAA")
	assert.True(t, errors.Is(err, ErrCiphertext))
}
