package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func loadWith(t *testing.T, arguments ...string) (config.Settings, error) {
	t.Helper()

	var (
		settings config.Settings
		loadErr  error
	)

	cmd := &cli.Command{
		Name:  "canvasblocks",
		Flags: globalFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			settings, loadErr = loadSettings(command)

			return nil
		},
	}

	require.NoError(t, cmd.Run(t.Context(), append([]string{"canvasblocks"}, arguments...)))

	return settings, loadErr
}

func TestLoadSettings_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
vault_path = "/vault/from/file"
python_path = "/usr/bin/python3.12"
ordering = "topological"
`), 0o644))

	settings, err := loadWith(t, "--config", path, "--vault", "/vault/from/flag")
	require.NoError(t, err)

	assert.Equal(t, "/vault/from/flag", settings.VaultPath)
	assert.Equal(t, "/usr/bin/python3.12", settings.PythonPath)
	assert.Equal(t, "topological", settings.Ordering)
}

func TestLoadSettings_RejectsInvalidFlags(t *testing.T) {
	_, err := loadWith(t, "--ordering", "alphabetical")
	assert.Error(t, err)

	_, err = loadWith(t, "--event-bus", "kafka", "--kafka-brokers", "")
	assert.Error(t, err)
}
