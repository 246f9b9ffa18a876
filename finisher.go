package splitlog

import (
	"os"
	"path/filepath"

	"github.com/hamba/pkg/log"
	"github.com/nrwiersma/splitlog/split"
)

// ArchiveFinisher moves fully split log files into an archive directory. It
// is idempotent; a log file that is already archived, or already removed,
// finishes successfully.
type ArchiveFinisher struct {
	dir string

	log log.Logger
}

// NewArchiveFinisher returns an archive finisher moving split log files
// into dir.
func NewArchiveFinisher(dir string, logger log.Logger) (*ArchiveFinisher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Null
	}

	return &ArchiveFinisher{
		dir: dir,
		log: logger,
	}, nil
}

// Finish archives the split log file.
func (f *ArchiveFinisher) Finish(workerName, logfile string) split.FinishStatus {
	target := filepath.Join(f.dir, filepath.Base(logfile))

	if _, err := os.Stat(logfile); os.IsNotExist(err) {
		if _, err := os.Stat(target); err == nil {
			return split.FinishDone
		}
		// Nothing to archive. The worker may have consumed the log file
		// entirely.
		f.log.Debug("log file gone before archiving", "logfile", logfile, "worker", workerName)
		return split.FinishDone
	}

	if err := os.Rename(logfile, target); err != nil {
		f.log.Error("could not archive log file", "logfile", logfile, "error", err)
		return split.FinishErr
	}

	f.log.Info("archived log file", "logfile", logfile, "worker", workerName)
	return split.FinishDone
}
