// Package zk adapts a ZooKeeper connection to the split coordination store.
package zk

import (
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/hamba/pkg/log"
	logadpt "github.com/nrwiersma/splitlog/pkg/log"
	"github.com/nrwiersma/splitlog/split"
	"github.com/pkg/errors"
)

// DefaultSessionTimeout is the default ZooKeeper session timeout.
const DefaultSessionTimeout = 10 * time.Second

// Config holds the configuration for a Client.
type Config struct {
	// Addrs is the list of ZooKeeper server addresses.
	Addrs []string

	// SessionTimeout is the ZooKeeper session timeout.
	SessionTimeout time.Duration

	// Logger is the logger to log to.
	Logger log.Logger
}

// Client is a coordination store client backed by ZooKeeper.
type Client struct {
	conn *zk.Conn

	log log.Logger
}

// Connect connects to the ZooKeeper ensemble.
func Connect(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("zk: no addresses given")
	}

	timeout := cfg.SessionTimeout
	if timeout == 0 {
		timeout = DefaultSessionTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Null
	}

	conn, _, err := zk.Connect(cfg.Addrs, timeout,
		zk.WithLogger(logadpt.NewPrintfBridge(logger, logadpt.Debug, "zk: ")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "zk: error connecting")
	}

	return &Client{
		conn: conn,
		log:  logger,
	}, nil
}

// EnsurePath creates the given path and any missing parents as persistent
// nodes.
func (c *Client) EnsurePath(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	node := ""
	for _, part := range parts {
		node += "/" + part
		_, err := c.conn.Create(node, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return errors.Wrap(mapErr(err), "zk: error ensuring path")
		}
	}
	return nil
}

// Create creates a persistent node, delivering the result to cb.
func (c *Client) Create(path string, data []byte, cb split.CreateFunc) {
	go func() {
		name, err := c.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll))
		cb(name, mapErr(err))
	}()
}

// CreateEphemeralSequential creates an ephemeral node with a unique sequence
// suffix appended to path, delivering the created name to cb.
func (c *Client) CreateEphemeralSequential(path string, data []byte, cb split.CreateFunc) {
	go func() {
		name, err := c.conn.Create(path, data, zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
		cb(name, mapErr(err))
	}()
}

// GetData reads a node and arms a one shot data watch on it. Only data
// changes fire the watch; node deletion is driven by the manager itself.
func (c *Client) GetData(path string, watch split.WatchFunc, cb split.DataFunc) {
	go func() {
		data, stat, events, err := c.conn.GetW(path)
		if err != nil {
			cb(nil, 0, mapErr(err))
			return
		}

		if watch != nil {
			go func() {
				ev := <-events
				if ev.Type == zk.EventNodeDataChanged {
					watch(path)
				}
			}()
		}

		cb(data, stat.Version, nil)
	}()
}

// SetData writes a node conditionally on the expected version, which may be
// -1 to disable the check. It returns false without error on a version
// mismatch.
func (c *Client) SetData(path string, data []byte, version int32) (bool, error) {
	_, err := c.conn.Set(path, data, version)
	switch err {
	case nil:
		return true, nil
	case zk.ErrBadVersion:
		return false, nil
	default:
		return false, mapErr(err)
	}
}

// Delete deletes a node regardless of version, delivering the result to cb.
func (c *Client) Delete(path string, cb split.DeleteFunc) {
	go func() {
		cb(mapErr(c.conn.Delete(path, -1)))
	}()
}

// Children lists the child node names under path without a watch.
func (c *Client) Children(path string) ([]string, error) {
	children, _, err := c.conn.Children(path)
	if err != nil {
		return nil, mapErr(err)
	}
	return children, nil
}

// Close closes the ZooKeeper connection.
func (c *Client) Close() {
	c.conn.Close()
}

// mapErr maps a ZooKeeper error to the store sentinel errors.
func mapErr(err error) error {
	switch err {
	case nil:
		return nil
	case zk.ErrNoNode:
		return split.ErrNoNode
	case zk.ErrNodeExists:
		return split.ErrNodeExists
	case zk.ErrBadVersion:
		return split.ErrBadVersion
	case zk.ErrSessionExpired:
		return split.ErrSessionExpired
	default:
		return err
	}
}
