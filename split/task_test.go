package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		logfile string
	}{
		{name: "plain", logfile: "wal-1"},
		{name: "path", logfile: "/data/logs/server-1/wal-1"},
		{name: "spaces", logfile: "/data/log files/wal 1"},
		{name: "percent", logfile: "/data/100%/wal-1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			name := encodeTaskName(test.logfile)

			assert.NotContains(t, name, "/")

			got, err := decodeTaskName(name)

			require.NoError(t, err)
			assert.Equal(t, test.logfile, got)
		})
	}
}

func TestManager_TaskNode(t *testing.T) {
	m := &Manager{config: &Config{Namespace: "/splitlog"}}

	node := m.taskNode("/data/logs/wal-1")

	assert.Equal(t, "/splitlog/"+encodeTaskName("/data/logs/wal-1"), node)
	assert.Equal(t, "/data/logs/wal-1", m.taskName(node))
}

func TestManager_IsRescanNode(t *testing.T) {
	m := &Manager{config: &Config{Namespace: "/splitlog"}}

	assert.True(t, m.isRescanNode("/splitlog/RESCAN0000000001"))
	assert.True(t, m.isRescanNode("RESCAN0000000001"))
	assert.False(t, m.isRescanNode(m.taskNode("/data/logs/RESCAN-server/wal-1")))
	assert.False(t, m.isRescanNode("/splitlog/wal-1"))
}
