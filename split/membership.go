package split

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hamba/pkg/log"
	"github.com/hashicorp/memberlist"
	"github.com/hashicorp/serf/serf"
	logadpt "github.com/nrwiersma/splitlog/pkg/log"
	"github.com/pkg/errors"
)

const serfSnapshot = "serf/local.snapshot"

// Member role tags.
const (
	// RoleCoordinator is the role tag of a split coordinator.
	RoleCoordinator = "coordinator"

	// RoleWorker is the role tag of a split worker.
	RoleWorker = "worker"
)

// Membership tracks worker liveness through a gossip pool. Workers that
// fail, leave or are reaped are reported to the dead worker handler.
type Membership struct {
	config  *Config
	handler func(workerName string)

	serf    *serf.Serf
	eventCh chan serf.Event

	log log.Logger

	shutdownMu sync.Mutex
	shutdownCh chan struct{}
	shutdown   bool
}

// NewMembership joins the coordinator into the gossip pool, reporting dead
// workers to the given handler.
func NewMembership(cfg *Config, handler func(workerName string)) (*Membership, error) {
	if cfg.EncryptKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptKey)
		if err != nil {
			return nil, errors.Wrap(err, "split: failed to decode encryption key")
		}

		if err := memberlist.ValidateKey(key); err != nil {
			return nil, errors.Wrap(err, "split: invalid encryption key")
		}

		cfg.SerfConfig.MemberlistConfig.SecretKey = key
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Null
	}

	m := &Membership{
		config:     cfg,
		handler:    handler,
		eventCh:    make(chan serf.Event, 256),
		shutdownCh: make(chan struct{}),
		log:        logger,
	}

	var err error
	m.serf, err = m.setupSerf(cfg.SerfConfig)
	if err != nil {
		return nil, errors.Wrap(err, "split: error creating serf")
	}

	go m.eventHandler()

	return m, nil
}

func (m *Membership) setupSerf(config *serf.Config) (*serf.Serf, error) {
	config.Init()
	config.NodeName = m.config.Name
	config.Tags["role"] = RoleCoordinator
	config.Tags["serf_addr"] = fmt.Sprintf("%s:%d",
		config.MemberlistConfig.BindAddr, config.MemberlistConfig.BindPort)
	config.Logger = logadpt.NewBridge(m.log, logadpt.Debug, "serf: ")
	config.MemberlistConfig.Logger = logadpt.NewBridge(m.log, logadpt.Debug, "memberlist: ")
	config.EventCh = m.eventCh
	config.EnableNameConflictResolution = false
	config.SnapshotPath = filepath.Join(m.config.DataDir, serfSnapshot)

	if err := ensurePath(config.SnapshotPath, false); err != nil {
		return nil, err
	}

	return serf.Create(config)
}

// eventHandler reports workers leaving the pool until shutdown.
func (m *Membership) eventHandler() {
	for {
		select {
		case e := <-m.eventCh:
			switch e.EventType() {
			case serf.EventMemberLeave, serf.EventMemberFailed, serf.EventMemberReap:
				m.workersGone(e.(serf.MemberEvent))
			}

		case <-m.shutdownCh:
			return
		}
	}
}

// workersGone reports the workers in the member event as dead.
func (m *Membership) workersGone(e serf.MemberEvent) {
	for _, member := range e.Members {
		if member.Tags["role"] != RoleWorker {
			continue
		}
		m.handler(member.Name)
	}
}

// Join joins the gossip pool at the given addresses.
func (m *Membership) Join(addrs ...string) error {
	if _, err := m.serf.Join(addrs, true); err != nil {
		return fmt.Errorf("split: error joining gossip pool: %w", err)
	}
	return nil
}

// Members returns the current members of the gossip pool.
func (m *Membership) Members() []serf.Member {
	return m.serf.Members()
}

// Workers returns the alive workers in the gossip pool.
func (m *Membership) Workers() []serf.Member {
	var workers []serf.Member
	for _, member := range m.serf.Members() {
		if member.Tags["role"] != RoleWorker {
			continue
		}
		if member.Status != serf.StatusAlive {
			continue
		}
		workers = append(workers, member)
	}
	return workers
}

// Leave gracefully leaves the gossip pool.
func (m *Membership) Leave() error {
	if err := m.serf.Leave(); err != nil {
		return errors.Wrap(err, "split: error leaving gossip pool")
	}
	return nil
}

// Close shuts the membership down, without notifying the pool.
func (m *Membership) Close() error {
	m.shutdownMu.Lock()
	defer m.shutdownMu.Unlock()

	if m.shutdown {
		return nil
	}
	m.shutdown = true
	close(m.shutdownCh)

	if err := m.serf.Shutdown(); err != nil {
		return fmt.Errorf("split: error shutting down serf: %w", err)
	}
	return nil
}

// ensurePath is used to make sure a path exists
func ensurePath(path string, dir bool) error {
	if !dir {
		path = filepath.Dir(path)
	}
	return os.MkdirAll(path, 0755)
}
