package backup

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyConfig(t *testing.T) *EncryptionConfig {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	return &EncryptionConfig{
		Enabled:      true,
		KeyRetriever: func() ([]byte, error) { return key, nil },
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	em := NewEncryptionManager(testKeyConfig(t))
	data := []byte("compressed database payload")

	encrypted, stats, err := em.Encrypt(data)
	require.NoError(t, err)
	assert.NotEqual(t, data, encrypted)
	assert.Equal(t, "AES-256-GCM", stats.Algorithm)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}

func TestEncryptDisabledIsPassthrough(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: false})
	data := []byte("payload")

	encrypted, stats, err := em.Encrypt(data)
	require.NoError(t, err)
	assert.Equal(t, data, encrypted)
	assert.Equal(t, "NONE", stats.Algorithm)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	em := NewEncryptionManager(testKeyConfig(t))

	encrypted, _, err := em.Encrypt([]byte("secret"))
	require.NoError(t, err)

	other := NewEncryptionManager(testKeyConfig(t))
	_, err = other.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecryptTruncatedData(t *testing.T) {
	em := NewEncryptionManager(testKeyConfig(t))

	_, err := em.Decrypt([]byte("short"))
	require.Error(t, err)

	backupErr, ok := err.(*BackupError)
	require.True(t, ok)
	assert.Equal(t, BackupErrorTypeEncryption, backupErr.Type)
}

func TestKeyManagerFileRoundTrip(t *testing.T) {
	km := NewKeyManager(&EncryptionConfig{})

	key, err := km.GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, 32)

	path := t.TempDir() + "/backup.key"
	require.NoError(t, km.SaveKeyToFile(key, path))

	loaded, err := km.LoadKeyFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)
}

func TestKeyManagerRejectsShortKey(t *testing.T) {
	km := NewKeyManager(&EncryptionConfig{})
	err := km.SaveKeyToFile([]byte("short"), t.TempDir()+"/bad.key")
	assert.Error(t, err)
}

func TestGenerateKeyFromPasswordIsDeterministic(t *testing.T) {
	km := NewKeyManager(&EncryptionConfig{})
	salt := []byte("fixed salt value for the test aa")

	key1 := km.GenerateKeyFromPassword("hunter2", salt)
	key2 := km.GenerateKeyFromPassword("hunter2", salt)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	key3 := km.GenerateKeyFromPassword("different", salt)
	assert.NotEqual(t, key1, key3)
}

func TestPassphraseKeySource(t *testing.T) {
	config := &EncryptionConfig{
		Enabled:    true,
		KeySource:  "passphrase",
		Passphrase: "correct horse battery staple",
		Salt:       "00112233445566778899aabbccddeeff",
	}

	key1, err := config.GetEncryptionKey()
	require.NoError(t, err)
	require.Len(t, key1, 32)

	// The same passphrase and salt must derive the same key on every run,
	// or old backups could never be decrypted again.
	key2, err := config.GetEncryptionKey()
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	em := NewEncryptionManager(config)
	encrypted, _, err := em.Encrypt([]byte("payload"))
	require.NoError(t, err)
	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decrypted)
}

func TestPassphraseKeySourceRequiresSalt(t *testing.T) {
	km := NewKeyManager(&EncryptionConfig{})

	_, err := km.DeriveKeyFromPassphrase("hunter2", "")
	assert.Error(t, err)

	_, err = km.DeriveKeyFromPassphrase("hunter2", "not hex")
	assert.Error(t, err)
}

func TestPassphraseKeySourceRequiresPassphrase(t *testing.T) {
	t.Setenv("DATAGUARD_ENCRYPTION_PASSPHRASE", "")
	km := NewKeyManager(&EncryptionConfig{})

	_, err := km.DeriveKeyFromPassphrase("", "00112233445566778899aabbccddeeff")
	require.Error(t, err)

	t.Setenv("DATAGUARD_ENCRYPTION_PASSPHRASE", "from the environment")
	key, err := km.DeriveKeyFromPassphrase("", "00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
