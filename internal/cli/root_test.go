package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-scanner/internal/config"
)

func TestRootCmdPlacesDatabaseInConfigDir(t *testing.T) {
	dir := t.TempDir()
	cmd := NewRootCmd(config.Default(), zerolog.Nop(), dir)
	require.NotNil(t, cmd)

	// The position database lives next to config.toml, so a relocated
	// --config directory relocates the store with it.
	_, err := os.Stat(filepath.Join(dir, "scanner.db"))
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd(config.Default(), zerolog.Nop(), t.TempDir())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)
}
