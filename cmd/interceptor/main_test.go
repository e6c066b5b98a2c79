package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorgomez09/interceptor/internal/config"
)

func TestUnitTest_ParseFlags(t *testing.T) {
	t.Run("forward defaults", func(t *testing.T) {
		cfg, err := parseFlags(cmdForward, nil)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultForwardPort, cfg.Forward.Port)
		assert.Equal(t, "ca.key", cfg.Forward.CAKey)
		assert.Equal(t, "ca.cert", cfg.Forward.CACert)
	})

	t.Run("reverse flags override the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
reverse:
  port: 5000
  upstream: http://file:8080
handlers:
  - stats: {}
`), 0o644))

		cfg, err := parseFlags(cmdReverse, []string{"--config", path, "--upstream", "http://flag:9090"})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Reverse.Port)
		assert.Equal(t, "http://flag:9090", cfg.Reverse.Upstream)
		require.Len(t, cfg.Handlers, 1)
		assert.NotNil(t, cfg.Handlers[0].Stats)

		cfg, err = parseFlags(cmdReverse, []string{"--config", path, "--port", "4100"})
		require.NoError(t, err)
		assert.Equal(t, 4100, cfg.Reverse.Port)
		assert.Equal(t, "http://file:8080", cfg.Reverse.Upstream)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := parseFlags("serve", nil)
		require.Error(t, err)
	})
}
