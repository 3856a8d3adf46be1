package main

import (
	"context"
	"path/filepath"
	"testing"

	"go-elife-client/securestore"

	"github.com/stretchr/testify/require"
)

func TestCreateSecureStore_Memory(t *testing.T) {
	store, err := createSecureStore(&Config{StorageType: "memory"})
	require.NoError(t, err)
	require.IsType(t, &securestore.MemoryStore{}, store)
}

func TestCreateSecureStore_File(t *testing.T) {
	config := &Config{
		StorageType: "file",
		FileStorage: FileStorageConfig{
			Path:       filepath.Join(t.TempDir(), "store.bin"),
			Passphrase: "correct horse battery staple",
		},
	}
	store, err := createSecureStore(config)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, securestore.KeyTermsAccepted, "true"))

	reopened, err := createSecureStore(config)
	require.NoError(t, err)
	value, err := reopened.Get(ctx, securestore.KeyTermsAccepted)
	require.NoError(t, err)
	require.Equal(t, "true", value)
}

func TestCreateSecureStore_FileWithoutPassphrase(t *testing.T) {
	_, err := createSecureStore(&Config{
		StorageType: "file",
		FileStorage: FileStorageConfig{Path: filepath.Join(t.TempDir(), "store.bin")},
	})
	require.Error(t, err)
}

func TestCreateSecureStore_InvalidType(t *testing.T) {
	_, err := createSecureStore(&Config{StorageType: "etcd"})
	require.EqualError(t, err, "etcd is not a valid storage type")
}

func TestCreateSecureStore_UnreachableRedis(t *testing.T) {
	config := &Config{StorageType: "redis"}
	config.RedisConfig.Host = "127.0.0.1"
	config.RedisConfig.Port = 1
	_, err := createSecureStore(config)
	require.Error(t, err)
}
