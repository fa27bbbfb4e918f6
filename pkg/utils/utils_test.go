package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("a secret that is long enough")
	require.NoError(t, err)

	sealed, err := c.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token")

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", opened)

	again, err := c.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")
}

func TestCipherEmptyValues(t *testing.T) {
	c, err := NewCipher("k")
	require.NoError(t, err)

	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, opened)

	_, err = NewCipher("")
	assert.Error(t, err)
}

func TestCipherWrongKey(t *testing.T) {
	a, _ := NewCipher("first")
	b, _ := NewCipher("second")

	sealed, err := a.Encrypt("token")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)

	_, err = a.Decrypt("!!not base64!!")
	assert.Error(t, err)
}

func TestServiceToken(t *testing.T) {
	token, err := GenerateServiceToken("secret", "scheduler", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateServiceToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "scheduler", claims.Service)

	_, err = ValidateServiceToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateServiceToken("secret", "scheduler", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateServiceToken("secret", expired)
	assert.Error(t, err)
}
