package split_test

import (
	"testing"
	"time"

	"github.com/nrwiersma/splitlog/split"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := split.NewConfig()

	assert.NotEmpty(t, cfg.Name)
	assert.Equal(t, split.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, split.DefaultRetries, cfg.Retries)
	assert.Equal(t, split.DefaultMaxResubmit, cfg.MaxResubmit)
	assert.Equal(t, split.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, split.DefaultUnassignedTimeout, cfg.UnassignedTimeout)
	assert.Equal(t, split.DefaultMonitorPeriod, cfg.MonitorPeriod)
	require.NotNil(t, cfg.SerfConfig)
	assert.Equal(t, 24*time.Hour, cfg.SerfConfig.ReconnectTimeout)
}

func TestNewConfig_UniqueNames(t *testing.T) {
	cfg1 := split.NewConfig()
	cfg2 := split.NewConfig()

	assert.NotEqual(t, cfg1.Name, cfg2.Name)
}
