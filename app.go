package splitlog

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hamba/pkg/log"
	"github.com/hamba/pkg/stats"
	"github.com/nrwiersma/splitlog/split"
)

// Config configures an application.
type Config struct {
	Manager    *split.Manager
	Membership *split.Membership
	Logger     log.Logger
	Statter    stats.Statter
}

// Application represents the application.
type Application struct {
	manager    *split.Manager
	membership *split.Membership

	shutdownCh chan struct{}

	logger  log.Logger
	statter stats.Statter
}

// NewApplication creates an instance of Application.
func NewApplication(cfg Config) *Application {
	app := &Application{
		manager:    cfg.Manager,
		membership: cfg.Membership,
		shutdownCh: make(chan struct{}),
		logger:     cfg.Logger,
		statter:    cfg.Statter,
	}

	go app.printTasks()

	return app
}

// SplitLogs distributes the splitting of the log files under the given
// directories, blocking until the work is done.
func (a *Application) SplitLogs(logDirs ...string) (int64, error) {
	return a.manager.SplitLogs(logDirs...)
}

func (a *Application) printTasks() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.shutdownCh:
			return

		case <-ticker.C:
			tasks := a.manager.Tasks()
			workers := a.membership.Workers()
			if len(tasks) == 0 {
				a.logger.Info("no active split tasks", "workers", len(workers))
				continue
			}

			tw := tabwriter.NewWriter(os.Stdout, 10, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "")
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", "Logfile", "Worker", "Status", "Incarnation", "Resubmits", "Last Update")
			for _, task := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					task.Logfile, task.Worker, task.Status, task.Incarnation, task.Resubmits, task.LastUpdate)
			}
			fmt.Fprintln(tw, "")
			tw.Flush()
		}
	}
}

// Close closes the application.
func (a *Application) Close() error {
	close(a.shutdownCh)
	return nil
}
