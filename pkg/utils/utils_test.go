package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()

	assert.NotEqual(t, a, b)
	assert.True(t, IsValidSessionID(a))
	assert.False(t, IsValidSessionID("not-a-session"))
}

func TestLoadDotenv(t *testing.T) {
	t.Run("Should report a missing file without error", func(t *testing.T) {
		loaded, err := LoadDotenv(filepath.Join(t.TempDir(), ".env"))

		require.NoError(t, err)
		assert.False(t, loaded)
	})

	t.Run("Should load variables without overriding existing ones", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("DASH_UTILS_A=from-file\nDASH_UTILS_B=from-file\n"), 0o600))
		t.Setenv("DASH_UTILS_B", "from-env")
		t.Cleanup(func() { os.Unsetenv("DASH_UTILS_A") })

		loaded, err := LoadDotenv(path)

		require.NoError(t, err)
		assert.True(t, loaded)
		assert.Equal(t, "from-file", os.Getenv("DASH_UTILS_A"))
		assert.Equal(t, "from-env", os.Getenv("DASH_UTILS_B"))
	})
}
