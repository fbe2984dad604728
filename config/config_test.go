package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(func(o *Options) {
		o.EnvFile = ""
	})
	require.NoError(t, err)

	assert.Equal(t, 10, settings.MaxAgentIterations)
	assert.Equal(t, 120*time.Second, settings.AgentTimeout)
	assert.Equal(t, 3, settings.OversampleFactor)
	assert.Equal(t, "gpt-4o-mini", settings.GenerationModel)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_agent_iterations: 5\ntop_k: 8\n"), 0o600))

	settings, err := Load(func(o *Options) {
		o.EnvFile = ""
		o.YAMLFile = path
	})
	require.NoError(t, err)

	assert.Equal(t, 5, settings.MaxAgentIterations)
	assert.Equal(t, 8, settings.TopK)
	assert.Equal(t, 4, settings.MaxConcurrentAgents)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_agent_iterations: 5\n"), 0o600))

	t.Setenv("MAX_AGENT_ITERATIONS", "7")
	t.Setenv("AGENT_TIMEOUT", "90s")

	settings, err := Load(func(o *Options) {
		o.EnvFile = ""
		o.YAMLFile = path
	})
	require.NoError(t, err)

	assert.Equal(t, 7, settings.MaxAgentIterations)
	assert.Equal(t, 90*time.Second, settings.AgentTimeout)
}

func TestLoadMissingYAMLIsNotAnError(t *testing.T) {
	_, err := Load(func(o *Options) {
		o.EnvFile = ""
		o.YAMLFile = filepath.Join(t.TempDir(), "absent.yaml")
	})
	assert.NoError(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	settings := Default()
	settings.MaxAgentIterations = 0
	assert.Error(t, settings.Validate())

	settings = Default()
	settings.MinRelevance = 1.5
	assert.Error(t, settings.Validate())
}
