package secrets

import (
	"log/slog"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// **Feature: causeway, Property 16: Secret round-trip**
// For any secret value, encrypting it for a recipient and resolving it with
// the matching identity produces the original value.
func TestSecretRoundTrip(t *testing.T) {
	recipient, identity, err := GenerateKeyPair()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r, err := NewResolver(identity, logger)
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypt then resolve returns original value", prop.ForAll(
		func(value string) bool {
			armored, err := Encrypt(recipient, []byte(value))
			if err != nil || !IsEncrypted(armored) {
				return false
			}
			plain, err := r.Resolve(armored)
			return err == nil && plain == value
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestPlainValuesPassThrough(t *testing.T) {
	r, err := NewResolver("", nil)
	require.NoError(t, err)

	v, err := r.Resolve("hunter2")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestEncryptedValueWithoutIdentity(t *testing.T) {
	recipient, _, err := GenerateKeyPair()
	require.NoError(t, err)
	armored, err := Encrypt(recipient, []byte("secret"))
	require.NoError(t, err)

	r, err := NewResolver("", nil)
	require.NoError(t, err)
	_, err = r.Resolve(armored)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestWrongIdentity(t *testing.T) {
	recipient, _, err := GenerateKeyPair()
	require.NoError(t, err)
	_, other, err := GenerateKeyPair()
	require.NoError(t, err)

	armored, err := Encrypt(recipient, []byte("secret"))
	require.NoError(t, err)

	r, err := NewResolver(other, nil)
	require.NoError(t, err)
	_, err = r.Resolve(armored)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestInvalidKeys(t *testing.T) {
	_, err := NewResolver("not-a-key", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Encrypt("age1bogus", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolveAll(t *testing.T) {
	recipient, identity, err := GenerateKeyPair()
	require.NoError(t, err)
	armored, err := Encrypt(recipient, []byte("token-value"))
	require.NoError(t, err)

	r, err := NewResolver(identity, nil)
	require.NoError(t, err)

	token, password := armored, "plain"
	require.NoError(t, r.ResolveAll(map[string]*string{"PNC_TOKEN": &token, "KOJI_PASSWORD": &password, "unset": nil}))
	assert.Equal(t, "token-value", token)
	assert.Equal(t, "plain", password)
}
