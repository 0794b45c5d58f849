package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESEncryption_RoundTrip(t *testing.T) {
	enc, err := NewAESEncryption([]byte("short key"))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("signing-secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "signing-secret")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "signing-secret", string(plaintext))

	_, err = enc.Decrypt([]byte("x"))
	assert.Error(t, err)
}

func TestAESEncryption_EmptyKey(t *testing.T) {
	_, err := NewAESEncryption(nil)
	assert.Error(t, err)
}

func TestFileSecretStore(t *testing.T) {
	enc, err := NewAESEncryption([]byte("k"))
	require.NoError(t, err)
	dir := t.TempDir()
	store, err := NewFileSecretStore(dir, enc, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.SetSecret("api/signing", "s3cret"))

	// A fresh store has an empty cache and must read the file.
	fresh, err := NewFileSecretStore(dir, enc, testLogger())
	require.NoError(t, err)
	value, err := fresh.GetSecret("api/signing")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	keys, err := fresh.ListSecrets()
	require.NoError(t, err)
	assert.Equal(t, []string{"api_signing"}, keys)

	require.NoError(t, fresh.DeleteSecret("api/signing"))
	_, err = fresh.GetSecret("api/signing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.ErrorIs(t, fresh.DeleteSecret("api/signing"), ErrSecretNotFound)
}

func vaultServer(t *testing.T, data map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/aurora" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": data,
				"metadata": map[string]interface{}{
					"created_time":  "2024-01-01T00:00:00Z",
					"deletion_time": "",
					"destroyed":     false,
					"version":       1,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultSecretStore_Get(t *testing.T) {
	srv := vaultServer(t, map[string]interface{}{"signing_key": "from-vault"})

	store, err := NewVaultSecretStore(srv.URL, "test-token", "secret", "aurora", testLogger())
	require.NoError(t, err)

	value, err := store.GetSecret("signing_key")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	_, err = store.GetSecret("missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	keys, err := store.ListSecrets()
	require.NoError(t, err)
	assert.Equal(t, []string{"signing_key"}, keys)
}

func TestVaultSecretStore_MissingSecretIsEmpty(t *testing.T) {
	srv := vaultServer(t, nil)

	store, err := NewVaultSecretStore(srv.URL, "test-token", "secret", "elsewhere", testLogger())
	require.NoError(t, err)

	_, err = store.GetSecret("signing_key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestOpenSecretStore_UnknownBackend(t *testing.T) {
	_, err := OpenSecretStore(Settings{SecretBackend: "etcd"}, "k", testLogger())
	assert.Error(t, err)
}
