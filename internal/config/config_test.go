// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/pkg/errutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.Addr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "keygate.deliver", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.AttemptTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.Interval)
	assert.InEpsilon(t, 5.0/60.0, cfg.Tokens.IssueRate, 1e-9)
	assert.Equal(t, 5, cfg.Tokens.IssueBurst)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost:5432/keygate
nats:
  subject_prefix: custom.deliver
sweep:
  interval: 5m
log:
  format: text
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/keygate", cfg.Database.URL)
	assert.Equal(t, "custom.deliver", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, "text", cfg.Log.Format)

	// Unset keys keep their defaults.
	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/keygate.yaml", nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
observability:
  addr: 127.0.0.1:9200
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("observability.addr", "", "metrics listen address")
	require.NoError(t, flags.Parse([]string{"--observability.addr=127.0.0.1:9300"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9300", cfg.Observability.Addr)
}

func TestLoad_DatabaseURLFromEnv(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://file-wins:5432/keygate
`)
	t.Setenv("DATABASE_URL", "postgres://env-wins:5432/keygate")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-wins:5432/keygate", cfg.Database.URL)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("rejects unknown log format", func(t *testing.T) {
		path := writeConfigFile(t, `
log:
  format: xml
`)
		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("rejects negative issue rate", func(t *testing.T) {
		path := writeConfigFile(t, `
tokens:
  issue_rate: -1
`)
		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("rejects negative sweep interval", func(t *testing.T) {
		path := writeConfigFile(t, `
sweep:
  interval: -1m
`)
		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}
