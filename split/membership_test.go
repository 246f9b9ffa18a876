package split_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/hamba/testutils/retry"
	"github.com/hashicorp/serf/serf"
	"github.com/nrwiersma/splitlog/split"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
)

func newTestMembership(t *testing.T, port int, handler func(name string)) (*split.Membership, string) {
	t.Helper()

	tmpDir, err := ioutil.TempDir("", "splitlog-membership-test")
	require.NoError(t, err)

	cfg := split.NewConfig()
	cfg.Name = "coordinator"
	cfg.DataDir = tmpDir
	cfg.SerfConfig.MemberlistConfig.BindAddr = "127.0.0.1"
	cfg.SerfConfig.MemberlistConfig.BindPort = port
	tightenSerf(cfg.SerfConfig)

	m, err := split.NewMembership(cfg, handler)
	require.NoError(t, err)

	return m, tmpDir
}

func newTestWorkerSerf(t *testing.T, name string, port int) *serf.Serf {
	t.Helper()

	cfg := serf.DefaultConfig()
	cfg.Init()
	cfg.NodeName = name
	cfg.Tags["role"] = split.RoleWorker
	cfg.MemberlistConfig.BindAddr = "127.0.0.1"
	cfg.MemberlistConfig.BindPort = port
	tightenSerf(cfg)

	s, err := serf.Create(cfg)
	require.NoError(t, err)

	return s
}

func tightenSerf(cfg *serf.Config) {
	cfg.ReconnectTimeout = 24 * time.Hour
	cfg.MemberlistConfig.SuspicionMult = 2
	cfg.MemberlistConfig.RetransmitMult = 2
	cfg.MemberlistConfig.ProbeTimeout = 50 * time.Millisecond
	cfg.MemberlistConfig.ProbeInterval = 100 * time.Millisecond
	cfg.MemberlistConfig.GossipInterval = 100 * time.Millisecond
}

func TestMembership_Workers(t *testing.T) {
	ports := dynaport.Get(2)

	m, tmpDir := newTestMembership(t, ports[0], func(name string) {})
	defer os.RemoveAll(tmpDir)
	defer m.Close()

	worker := newTestWorkerSerf(t, "worker-1", ports[1])
	defer worker.Shutdown()

	_, err := worker.Join([]string{fmt.Sprintf("127.0.0.1:%d", ports[0])}, true)
	require.NoError(t, err)

	retry.Run(t, func(t *retry.SubT) {
		workers := m.Workers()
		if len(workers) != 1 {
			t.Fatalf("got %d workers", len(workers))
		}
		if workers[0].Name != "worker-1" {
			t.Fatalf("got worker %q", workers[0].Name)
		}
	})

	// The coordinator itself is a member but never a worker.
	require.Len(t, m.Members(), 2)
}

func TestMembership_ReportsDeadWorkers(t *testing.T) {
	ports := dynaport.Get(2)

	deadCh := make(chan string, 4)
	m, tmpDir := newTestMembership(t, ports[0], func(name string) {
		deadCh <- name
	})
	defer os.RemoveAll(tmpDir)
	defer m.Close()

	worker := newTestWorkerSerf(t, "worker-1", ports[1])

	_, err := worker.Join([]string{fmt.Sprintf("127.0.0.1:%d", ports[0])}, true)
	require.NoError(t, err)

	retry.Run(t, func(t *retry.SubT) {
		if len(m.Workers()) != 1 {
			t.Fatal("worker not yet joined")
		}
	})

	require.NoError(t, worker.Shutdown())

	select {
	case name := <-deadCh:
		require.Equal(t, "worker-1", name)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the dead worker report")
	}
}

func TestMembership_RejectsBadEncryptKey(t *testing.T) {
	cfg := split.NewConfig()
	cfg.EncryptKey = "not-base64!"

	_, err := split.NewMembership(cfg, func(name string) {})

	require.Error(t, err)
}
