package splitlog_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/nrwiersma/splitlog"
	"github.com/nrwiersma/splitlog/split"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveFinisher_Finish(t *testing.T) {
	dir, err := ioutil.TempDir("", "splitlog-finisher-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	logfile := filepath.Join(dir, "wal-1")
	require.NoError(t, ioutil.WriteFile(logfile, []byte("log contents"), 0644))

	archiveDir := filepath.Join(dir, "archive")
	f, err := splitlog.NewArchiveFinisher(archiveDir, nil)
	require.NoError(t, err)

	got := f.Finish("worker-1", logfile)

	assert.Equal(t, split.FinishDone, got)

	data, err := ioutil.ReadFile(filepath.Join(archiveDir, "wal-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("log contents"), data)

	_, err = os.Stat(logfile)
	assert.True(t, os.IsNotExist(err))

	// Finishing again must be a no-op.
	got = f.Finish("worker-1", logfile)

	assert.Equal(t, split.FinishDone, got)
}

func TestArchiveFinisher_FinishMissingLog(t *testing.T) {
	dir, err := ioutil.TempDir("", "splitlog-finisher-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	f, err := splitlog.NewArchiveFinisher(filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)

	got := f.Finish("worker-1", filepath.Join(dir, "wal-1"))

	assert.Equal(t, split.FinishDone, got)
}
