// Package kvdb provides a key-value database with Checkpoints & Resets system
package kvdb

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-merkletree/db"
	"github.com/iden3/go-merkletree/db/pebble"
)

const (
	// PathCheckpoint defines the subpath of each Checkpoint in the path of
	// the KVDB
	PathCheckpoint = "Checkpoint"
	// PathCurrent defines the subpath of the current state in the path of
	// the KVDB
	PathCurrent = "current"
)

var (
	// KeyCurrentCheckpoint is used as key in the db to store the number of
	// the last checkpoint
	KeyCurrentCheckpoint = []byte("k:currentcheckpoint")
)

// KVDB represents the Key-Value DB object
type KVDB struct {
	path string
	db   *pebble.Storage
	// CurrentCheckpoint is the number of the last checkpoint made from
	// the current db
	CurrentCheckpoint uint64
	keep              int
	m                 sync.Mutex
}

// NewKVDB creates a new KVDB in pathDB, or opens the existing one keeping
// its current state. Checkpoints older than the value defined by `keep` will
// be deleted.
func NewKVDB(pathDB string, keep int) (*KVDB, error) {
	sto, err := pebble.NewPebbleStorage(path.Join(pathDB, PathCurrent), false)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	kvdb := &KVDB{
		path: pathDB,
		db:   sto,
		keep: keep,
	}
	kvdb.CurrentCheckpoint, err = kvdb.GetCurrentCheckpoint()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return kvdb, nil
}

// DB returns the *pebble.Storage from the KVDB
func (kvdb *KVDB) DB() *pebble.Storage {
	return kvdb.db
}

// Reset resets the KVDB to the checkpoint with the given number. Checkpoints
// after it are deleted. Reset(0) wipes the db.
func (kvdb *KVDB) Reset(checkpoint uint64) error {
	currentPath := path.Join(kvdb.path, PathCurrent)

	if err := kvdb.db.Pebble().Close(); err != nil {
		return tracerr.Wrap(err)
	}
	// remove 'current'
	if err := os.RemoveAll(currentPath); err != nil {
		return tracerr.Wrap(err)
	}
	// remove all checkpoints > checkpoint
	list, err := kvdb.ListCheckpoints()
	if err != nil {
		return tracerr.Wrap(err)
	}
	start := 0
	for ; start < len(list); start++ {
		if uint64(list[start]) > checkpoint {
			break
		}
	}
	for _, cp := range list[start:] {
		if err := kvdb.DeleteCheckpoint(uint64(cp)); err != nil {
			return tracerr.Wrap(err)
		}
	}

	if checkpoint == 0 {
		sto, err := pebble.NewPebbleStorage(currentPath, false)
		if err != nil {
			return tracerr.Wrap(err)
		}
		kvdb.db = sto
		kvdb.CurrentCheckpoint = 0
		return nil
	}

	// copy 'CheckpointN' to 'current'
	if err := kvdb.MakeCheckpointFromTo(checkpoint, currentPath); err != nil {
		return tracerr.Wrap(err)
	}
	sto, err := pebble.NewPebbleStorage(currentPath, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	kvdb.db = sto

	kvdb.CurrentCheckpoint, err = kvdb.GetCurrentCheckpoint()
	if err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// GetCurrentCheckpoint returns the current checkpoint number stored in the
// KVDB
func (kvdb *KVDB) GetCurrentCheckpoint() (uint64, error) {
	cpBytes, err := kvdb.db.Get(KeyCurrentCheckpoint)
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	if len(cpBytes) != 8 { //nolint:gomnd
		return 0, tracerr.Wrap(fmt.Errorf("invalid checkpoint number, bytes len %d", len(cpBytes)))
	}
	return binary.BigEndian.Uint64(cpBytes), nil
}

// setCurrentCheckpoint stores the current checkpoint number in the KVDB
func (kvdb *KVDB) setCurrentCheckpoint() error {
	tx, err := kvdb.db.NewTx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], kvdb.CurrentCheckpoint)
	if err := tx.Put(KeyCurrentCheckpoint, b[:]); err != nil {
		return tracerr.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// MakeCheckpoint advances & stores the current checkpoint number, and then
// stores a Checkpoint of the current state of the KVDB.
func (kvdb *KVDB) MakeCheckpoint() error {
	kvdb.CurrentCheckpoint++

	checkpointPath := kvdb.checkpointPath(kvdb.CurrentCheckpoint)

	if err := kvdb.setCurrentCheckpoint(); err != nil {
		return tracerr.Wrap(err)
	}

	// if the checkpoint already exist in disk, delete it
	if _, err := os.Stat(checkpointPath); !os.IsNotExist(err) {
		if err := os.RemoveAll(checkpointPath); err != nil {
			return tracerr.Wrap(err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return tracerr.Wrap(err)
	}

	if err := kvdb.db.Pebble().Checkpoint(checkpointPath); err != nil {
		return tracerr.Wrap(err)
	}
	if err := kvdb.deleteOldCheckpoints(); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

func (kvdb *KVDB) checkpointPath(checkpoint uint64) string {
	return path.Join(kvdb.path, fmt.Sprintf("%s%d", PathCheckpoint, checkpoint))
}

// DeleteCheckpoint removes if exist the given checkpoint
func (kvdb *KVDB) DeleteCheckpoint(checkpoint uint64) error {
	checkpointPath := kvdb.checkpointPath(checkpoint)

	if _, err := os.Stat(checkpointPath); os.IsNotExist(err) {
		return tracerr.Wrap(fmt.Errorf("Checkpoint %d does not exist in DB", checkpoint))
	}

	return tracerr.Wrap(os.RemoveAll(checkpointPath))
}

// ListCheckpoints returns the list of checkpoint numbers, sorted. If there's
// a gap between the list of checkpoints, an error is returned.
func (kvdb *KVDB) ListCheckpoints() ([]int, error) {
	files, err := ioutil.ReadDir(kvdb.path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	checkpoints := []int{}
	var checkpoint int
	pattern := fmt.Sprintf("%s%%d", PathCheckpoint)
	for _, file := range files {
		fileName := file.Name()
		if file.IsDir() && strings.HasPrefix(fileName, PathCheckpoint) {
			if _, err := fmt.Sscanf(fileName, pattern, &checkpoint); err != nil {
				return nil, tracerr.Wrap(err)
			}
			checkpoints = append(checkpoints, checkpoint)
		}
	}
	sort.Ints(checkpoints)
	if len(checkpoints) > 0 {
		first := checkpoints[0]
		for _, checkpoint := range checkpoints[1:] {
			first++
			if checkpoint != first {
				log.Errorw("GAP", "checkpoints", checkpoints)
				return nil, tracerr.Wrap(fmt.Errorf("checkpoint gap at %v", checkpoint))
			}
		}
	}
	return checkpoints, nil
}

// deleteOldCheckpoints deletes old checkpoints when there are more than
// `kvdb.keep` checkpoints
func (kvdb *KVDB) deleteOldCheckpoints() error {
	list, err := kvdb.ListCheckpoints()
	if err != nil {
		return tracerr.Wrap(err)
	}
	if len(list) > kvdb.keep {
		for _, checkpoint := range list[:len(list)-kvdb.keep] {
			if err := kvdb.DeleteCheckpoint(uint64(checkpoint)); err != nil {
				return tracerr.Wrap(err)
			}
		}
	}
	return nil
}

// MakeCheckpointFromTo copies the checkpoint `from` to the dest folder. This
// method is locking, so it can be called from multiple places at the same
// time.
func (kvdb *KVDB) MakeCheckpointFromTo(from uint64, dest string) error {
	source := kvdb.checkpointPath(from)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return tracerr.Wrap(fmt.Errorf("Checkpoint \"%v\" does not exist", source))
	}
	kvdb.m.Lock()
	defer kvdb.m.Unlock()
	return pebbleMakeCheckpoint(source, dest)
}

func pebbleMakeCheckpoint(source, dest string) error {
	// Remove dest folder (if it exists) before doing the checkpoint
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		if err := os.RemoveAll(dest); err != nil {
			return tracerr.Wrap(err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return tracerr.Wrap(err)
	}

	sto, err := pebble.NewPebbleStorage(source, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer func() {
		if errClose := sto.Pebble().Close(); errClose != nil {
			log.Errorw("Pebble.Close", "err", errClose)
		}
	}()

	if err := sto.Pebble().Checkpoint(dest); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// Close the DB
func (kvdb *KVDB) Close() {
	kvdb.db.Close()
}
