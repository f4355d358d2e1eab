package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDiscoveryTimeout, cfg.Discovery.Timeout.D())
	assert.Equal(t, DefaultDiscoveryRetries, cfg.Discovery.Retries)
	assert.Equal(t, DefaultPortRangeStart, cfg.Discovery.PortRangeStart)
	assert.Equal(t, DefaultPortRangeEnd, cfg.Discovery.PortRangeEnd)
	assert.Equal(t, "docker", cfg.Docker.Runtime)
	assert.Equal(t, DefaultContainerHealthCheckTimeout, cfg.Docker.HealthCheckTimeout.D())
	assert.Equal(t, DefaultNamespace, cfg.Kubernetes.Namespace)
	assert.Equal(t, DefaultPodReadyTimeout, cfg.Kubernetes.PodReadyTimeout.D())
}

func TestLoadConfigOverridesAndKeepsDefaults(t *testing.T) {
	content := `
discovery:
  timeout: 90s
  retries: 5
kubernetes:
  namespace: mcp-probes
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Discovery.Timeout.D())
	assert.Equal(t, 5, cfg.Discovery.Retries)
	assert.Equal(t, "mcp-probes", cfg.Kubernetes.Namespace)
	// Values not present in the file keep their defaults.
	assert.Equal(t, DefaultDiscoveryRetrySleep, cfg.Discovery.RetrySleep.D())
	assert.Equal(t, "docker", cfg.Docker.Runtime)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discovery:\n  timeout: not-a-duration\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(150 * time.Millisecond)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "150ms", out)
}
