package kvdb

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTestKV(t *testing.T, db *KVDB, k, v []byte) {
	tx, err := db.db.NewTx()
	require.NoError(t, err)

	err = tx.Put(k, v)
	require.NoError(t, err)

	err = tx.Commit()
	require.NoError(t, err)
}

func TestCheckpoints(t *testing.T) {
	dir, err := ioutil.TempDir("", "kvdb")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()

	db, err := NewKVDB(dir, 128)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		addTestKV(t, db, []byte{byte(i), byte(i)}, []byte{byte(i * 2), byte(i * 2)})
	}

	err = db.MakeCheckpoint()
	assert.NoError(t, err)
	cp, err := db.GetCurrentCheckpoint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), cp)

	for i := 1; i < 10; i++ {
		// key written between checkpoints 1 and 3 only
		if i == 2 {
			addTestKV(t, db, []byte("late"), []byte("value"))
		}
		err = db.MakeCheckpoint()
		assert.NoError(t, err)

		cp, err = db.GetCurrentCheckpoint()
		assert.NoError(t, err)
		assert.Equal(t, uint64(i+1), cp)
	}

	err = db.Reset(2)
	require.NoError(t, err)
	// reset can be repeated as 'Checkpoint2' still exists
	err = db.Reset(2)
	require.NoError(t, err)

	cp, err = db.GetCurrentCheckpoint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), cp)
	assert.Equal(t, uint64(2), db.CurrentCheckpoint)
	v, err := db.DB().Get([]byte{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{6, 6}, v)
	_, err = db.DB().Get([]byte("late"))
	assert.Error(t, err)

	err = db.MakeCheckpoint()
	assert.NoError(t, err)
	cp, err = db.GetCurrentCheckpoint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), cp)

	err = db.DeleteCheckpoint(1)
	assert.NoError(t, err)
	err = db.DeleteCheckpoint(1) // does not exist, should return err
	assert.NotNil(t, err)

	// reopening keeps the current state
	db.Close()
	db, err = NewKVDB(dir, 128)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), db.CurrentCheckpoint)
	v, err = db.DB().Get([]byte{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{18, 18}, v)
	_, err = db.DB().Get([]byte("late"))
	assert.Error(t, err)
	db.Close()
}

func TestListCheckpoints(t *testing.T) {
	dir, err := ioutil.TempDir("", "tmpdb")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()

	db, err := NewKVDB(dir, 128)
	require.NoError(t, err)
	defer db.Close()

	numCheckpoints := 16
	for i := 0; i < numCheckpoints; i++ {
		err = db.MakeCheckpoint()
		require.NoError(t, err)
	}
	list, err := db.ListCheckpoints()
	require.NoError(t, err)
	assert.Equal(t, numCheckpoints, len(list))
	assert.Equal(t, 1, list[0])
	assert.Equal(t, numCheckpoints, list[len(list)-1])

	numReset := 10
	err = db.Reset(uint64(numReset))
	require.NoError(t, err)
	list, err = db.ListCheckpoints()
	require.NoError(t, err)
	assert.Equal(t, numReset, len(list))
	assert.Equal(t, 1, list[0])
	assert.Equal(t, numReset, list[len(list)-1])

	err = db.Reset(0)
	require.NoError(t, err)
	list, err = db.ListCheckpoints()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, uint64(0), db.CurrentCheckpoint)
}

func TestDeleteOldCheckpoints(t *testing.T) {
	dir, err := ioutil.TempDir("", "tmpdb")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()

	keep := 16
	db, err := NewKVDB(dir, keep)
	require.NoError(t, err)
	defer db.Close()

	numCheckpoints := 32
	// we never have more than `keep` checkpoints
	for i := 0; i < numCheckpoints; i++ {
		err = db.MakeCheckpoint()
		require.NoError(t, err)
		checkpoints, err := db.ListCheckpoints()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(checkpoints), keep)
	}
}
