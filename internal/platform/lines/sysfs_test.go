package lines

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportGPIO(t *testing.T, root, name, value string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "value")
	require.NoError(t, os.WriteFile(path, []byte(value+"\n"), 0o644))
	return path
}

func TestSysfsLines(t *testing.T) {
	root := t.TempDir()
	path := exportGPIO(t, root, "gpio17", "1")
	s := NewSysfs(root)

	level, err := s.Get("gpio17")
	require.NoError(t, err)
	assert.True(t, level)

	require.NoError(t, s.Set("gpio17", false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))

	level, err = s.Get("gpio17")
	require.NoError(t, err)
	assert.False(t, level)
}

func TestSysfsErrors(t *testing.T) {
	root := t.TempDir()
	exportGPIO(t, root, "gpio4", "x")
	s := NewSysfs(root)

	_, err := s.Get("gpio4")
	assert.Error(t, err)

	_, err = s.Get("gpio99")
	assert.Error(t, err)

	assert.ErrorIs(t, s.Set("../gpio4", true), &UnknownLineError{})
	_, err = s.Get("")
	assert.ErrorIs(t, err, &UnknownLineError{})
}

func TestSysfsDefaultRoot(t *testing.T) {
	assert.Equal(t, DefaultGPIORoot, NewSysfs("").root)
}
