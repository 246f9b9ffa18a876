package split

import (
	"fmt"
	"os"
	"time"

	"github.com/hamba/pkg/log"
	"github.com/hamba/pkg/stats"
	"github.com/hashicorp/serf/serf"
	"github.com/segmentio/ksuid"
)

// Default configuration values.
const (
	// DefaultNamespace is the default store path tasks are published under.
	DefaultNamespace = "/splitlog"

	// DefaultRetries is the default retry budget for async store calls.
	DefaultRetries = 3

	// DefaultMaxResubmit is the default ceiling on timeout driven
	// resubmissions per task.
	DefaultMaxResubmit = 3

	// DefaultTimeout is the default worker idle time before a task is
	// considered stalled.
	DefaultTimeout = 25 * time.Second

	// DefaultUnassignedTimeout is the default time with zero assignments
	// before a store wide rescan is forced.
	DefaultUnassignedTimeout = 3 * time.Minute

	// DefaultMonitorPeriod is the default timeout monitor tick.
	DefaultMonitorPeriod = time.Second
)

// Config holds the configuration for a Manager.
type Config struct {
	// Name is the identity this coordinator writes into task payloads.
	Name string

	// Namespace is the store path under which tasks are published.
	Namespace string

	// DataDir is the directory to store membership state in.
	DataDir string

	// Retries is the retry budget for asynchronous store calls.
	Retries int

	// MaxResubmit is the ceiling on timeout driven resubmissions per task.
	MaxResubmit int

	// Timeout is the worker idle time before a task may be resubmitted.
	Timeout time.Duration

	// UnassignedTimeout is the time with zero assigned tasks before the
	// workers are pinged with a rescan marker.
	UnassignedTimeout time.Duration

	// MonitorPeriod is the timeout monitor tick period.
	MonitorPeriod time.Duration

	// Finisher finishes a partially done task after a worker reports
	// success. It must be restartable and idempotent. It may be nil.
	Finisher TaskFinisher

	// SerfConfig is the configuration used for the worker membership.
	SerfConfig *serf.Config

	// EncryptKey is the encryption key used to secure Serf
	// communications. The entire cluster must use the same key.
	EncryptKey string

	// Logger is the logger to log to.
	Logger log.Logger

	// Statter is the stats client to emit counters to.
	Statter stats.Statter
}

// NewConfig creates/returns a default configuration.
func NewConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		panic(err)
	}

	conf := &Config{
		Name:              fmt.Sprintf("%s-%s", hostname, ksuid.New().String()),
		Namespace:         DefaultNamespace,
		Retries:           DefaultRetries,
		MaxResubmit:       DefaultMaxResubmit,
		Timeout:           DefaultTimeout,
		UnassignedTimeout: DefaultUnassignedTimeout,
		MonitorPeriod:     DefaultMonitorPeriod,
		SerfConfig:        serf.DefaultConfig(),
		Logger:            log.Null,
		Statter:           stats.Null,
	}

	conf.SerfConfig.ReconnectTimeout = 24 * time.Hour

	return conf
}
