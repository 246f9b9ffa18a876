// Command test runs a simulated split worker against a coordinator, for
// exercising log splitting end to end.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/hashicorp/go-sockaddr"
	"github.com/hashicorp/memberlist"
	"github.com/hashicorp/serf/serf"
	"github.com/nrwiersma/splitlog/split"
	"github.com/nrwiersma/splitlog/split/proto"
)

var (
	name      string
	members   string
	serfPort  int
	zkAddrs   string
	namespace string
	workTime  time.Duration
)

func init() {
	flag.StringVar(&name, "name", "", "the worker name")
	flag.StringVar(&members, "members", "", "127.0.0.1:1111,127.0.0.1:2222")
	flag.IntVar(&serfPort, "serfPort", 0, "1111")
	flag.StringVar(&zkAddrs, "zk", "127.0.0.1:2181", "the zookeeper addresses")
	flag.StringVar(&namespace, "namespace", "/splitlog", "the zookeeper task namespace")
	flag.DurationVar(&workTime, "workTime", 5*time.Second, "how long splitting a log takes")
}

func main() {
	flag.Parse()

	var peers []string
	if members != "" {
		peers = strings.Split(members, ",")
	}

	ip, err := sockaddr.GetPrivateIP()
	if err != nil {
		log.Fatal(err)
	}

	if name == "" {
		name = fmt.Sprintf("%s:%d", ip, serfPort)
	}

	memberlistConfig := memberlist.DefaultLANConfig()
	memberlistConfig.BindAddr = ip
	memberlistConfig.BindPort = serfPort
	memberlistConfig.LogOutput = os.Stdout

	serfConfig := serf.DefaultConfig()
	serfConfig.Init()
	serfConfig.NodeName = name
	serfConfig.Tags["role"] = split.RoleWorker
	serfConfig.MemberlistConfig = memberlistConfig
	serfConfig.LogOutput = os.Stdout

	s, err := serf.Create(serfConfig)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Shutdown()

	// Join an existing pool by specifying at least one known member.
	if len(peers) > 0 {
		_, err = s.Join(peers, false)
		if err != nil {
			log.Fatal(err)
		}
	}

	conn, _, err := zk.Connect(strings.Split(zkAddrs, ","), 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	log.Printf("worker %s polling %s", name, namespace)

	for {
		if err := grabTasks(conn); err != nil {
			log.Printf("error grabbing tasks: %v", err)
		}

		time.Sleep(time.Second)
	}
}

func grabTasks(conn *zk.Conn) error {
	children, _, err := conn.Children(namespace)
	if err != nil {
		return err
	}

	for _, child := range children {
		nodepath := namespace + "/" + child

		if strings.HasPrefix(child, "RESCAN") {
			continue
		}

		if err := grabTask(conn, nodepath); err != nil {
			log.Printf("error on task %s: %v", nodepath, err)
		}
	}
	return nil
}

func grabTask(conn *zk.Conn, nodepath string) error {
	data, stat, err := conn.Get(nodepath)
	if err == zk.ErrNoNode {
		return nil
	}
	if err != nil {
		return err
	}

	var ts proto.TaskState
	if err := proto.Decode(data, &ts); err != nil {
		return err
	}
	if !ts.IsUnassigned() {
		return nil
	}

	owned, err := proto.Encode(proto.NewOwned(name))
	if err != nil {
		return err
	}
	if _, err := conn.Set(nodepath, owned, stat.Version); err != nil {
		if err == zk.ErrBadVersion || err == zk.ErrNoNode {
			// Another worker beat us to it.
			return nil
		}
		return err
	}

	log.Printf("grabbed task %s", nodepath)

	// Pretend to split the log, heartbeating as we go.
	deadline := time.Now().Add(time.Duration(rand.Int63n(int64(workTime))))
	for time.Now().Before(deadline) {
		time.Sleep(time.Second)

		if _, err := conn.Set(nodepath, owned, -1); err != nil {
			return err
		}
	}

	done, err := proto.Encode(proto.NewDone(name))
	if err != nil {
		return err
	}
	if _, err := conn.Set(nodepath, done, -1); err != nil {
		return err
	}

	log.Printf("finished task %s", nodepath)
	return nil
}
