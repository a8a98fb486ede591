package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripes-go/stripes/internal/errors"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	var logs bytes.Buffer
	c := FromEnv(lookup(nil), slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, FlashMemory, c.Flash.Store)
	assert.Equal(t, 120*time.Second, c.Flash.Timeout)
	assert.False(t, c.Dispatch.AlwaysInvokeValidate)
	assert.Equal(t, ":8080", c.Address())
	assert.Contains(t, logs.String(), "STRIPES_ENCRYPTION_KEY not set")
	require.NoError(t, c.Validate())
}

func TestFromEnv(t *testing.T) {
	c := FromEnv(lookup(map[string]string{
		"PORT":                           "9000",
		"STRIPES_PORT":                   "9100",
		"STRIPES_HOST":                   "127.0.0.1",
		"STRIPES_ENCRYPTION_KEY":         "s3cret",
		"STRIPES_ALWAYS_INVOKE_VALIDATE": "true",
		"STRIPES_FLASH_STORE":            "Redis",
		"STRIPES_FLASH_TIMEOUT":          "45",
		"STRIPES_REDIS_ADDR":             "localhost:6379",
		"STRIPES_REDIS_DB":               "2",
		"STRIPES_MAX_UPLOAD_SIZE":        "1048576",
		"STRIPES_SHUTDOWN_TIMEOUT":       "5s",
		"STRIPES_INTERCEPTORS":           "stacks.yaml",
	}), nil)

	assert.Equal(t, "127.0.0.1:9100", c.Address())
	assert.Equal(t, "s3cret", c.Dispatch.EncryptionKey)
	assert.True(t, c.Dispatch.AlwaysInvokeValidate)
	assert.Equal(t, FlashRedis, c.Flash.Store)
	assert.Equal(t, 45*time.Second, c.Flash.Timeout)
	assert.Equal(t, 2, c.Redis.DB)
	assert.Equal(t, int64(1048576), c.Upload.MaxSize)
	assert.Equal(t, 5*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, "stacks.yaml", c.Dispatch.InterceptorsFile)
	require.NoError(t, c.Validate())
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	var logs bytes.Buffer
	c := FromEnv(lookup(map[string]string{
		"STRIPES_DEBUG":         "sometimes",
		"STRIPES_REDIS_DB":      "two",
		"STRIPES_FLASH_TIMEOUT": "soon",
	}), slog.New(slog.NewTextHandler(&logs, nil)))

	assert.False(t, c.Debug)
	assert.Equal(t, 0, c.Redis.DB)
	assert.Equal(t, 120*time.Second, c.Flash.Timeout)
	assert.Contains(t, logs.String(), "invalid boolean")
	assert.Contains(t, logs.String(), "invalid integer")
	assert.Contains(t, logs.String(), "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		ok   bool
	}{
		{"memory", map[string]string{}, true},
		{"redis without address", map[string]string{"STRIPES_FLASH_STORE": "redis"}, false},
		{"sql without url", map[string]string{"STRIPES_FLASH_STORE": "sql"}, false},
		{"sql", map[string]string{"STRIPES_FLASH_STORE": "sql", "STRIPES_DATABASE_URL": "postgres://localhost/app"}, true},
		{"unknown store", map[string]string{"STRIPES_FLASH_STORE": "memcached"}, false},
		{"negative upload size", map[string]string{"STRIPES_MAX_UPLOAD_SIZE": "-1"}, false},
		{"zero flash timeout", map[string]string{"STRIPES_FLASH_TIMEOUT": "0s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromEnv(lookup(tt.env), nil).Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.ConfigurationErrorCode, errors.CodeOf(err))
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("STRIPES_TEST_ONLY_PORT=7000\nSTRIPES_PORT=7001\n"), 0o600))

	// godotenv never overrides variables that are already set
	t.Setenv("STRIPES_PORT", "")
	require.NoError(t, os.Unsetenv("STRIPES_PORT"))
	t.Setenv("STRIPES_FLASH_STORE", "memory")

	c, err := Load(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), file)
	require.NoError(t, err)
	assert.Equal(t, "7001", c.Server.Port)
	assert.Equal(t, "7000", os.Getenv("STRIPES_TEST_ONLY_PORT"))
	require.NoError(t, os.Unsetenv("STRIPES_TEST_ONLY_PORT"))
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("STRIPES_FLASH_STORE", "memory")
	_, err := Load(nil, filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("STRIPES_FLASH_STORE", "carrier-pigeon")
	_, err := Load(nil, filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
