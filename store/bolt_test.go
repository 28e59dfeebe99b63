package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
)

type note struct {
	ID   int64  `json:"id" cbor:"id"`
	Text string `json:"text" cbor:"text"`
}

func openNotes(t *testing.T, opts ...Option) *Store[int64, note] {
	t.Helper()
	s, err := Open[int64, note](t.TempDir(), "notes", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[int64, note](dir, "notes")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, "notes.db"), s.Path())
	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestOpenRejectsEmptyName(t *testing.T) {
	_, err := Open[int64, note](t.TempDir(), "")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestSaveAndGet(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			s := openNotes(t, WithCodec(c))

			require.NoError(t, s.Save(1, note{ID: 1, Text: "first"}))
			got, err := s.Get(1)
			require.NoError(t, err)
			assert.Equal(t, note{ID: 1, Text: "first"}, got)

			require.NoError(t, s.Save(1, note{ID: 1, Text: "second"}))
			got, err = s.Get(1)
			require.NoError(t, err)
			assert.Equal(t, "second", got.Text)
		})
	}
}

func TestGetMissing(t *testing.T) {
	s := openNotes(t)

	_, err := s.Get(42)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, found, err := s.Find(42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTombstoneIsAbsent(t *testing.T) {
	s := openNotes(t)
	require.NoError(t, s.Save(1, note{ID: 1, Text: "a"}))
	require.NoError(t, s.Save(2, note{ID: 2, Text: "b"}))
	require.NoError(t, s.Tombstone(1))

	_, found, err := s.Find(1)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := s.FindAll(nil)
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 2, Text: "b"}}, all)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, keys)

	removed, err := s.Delete(1)
	require.NoError(t, err)
	assert.False(t, removed, "a tombstone holds no live value")
}

func TestFindAllOrderAndFilter(t *testing.T) {
	s := openNotes(t)
	for _, id := range []int64{3, -1, 10, 2} {
		require.NoError(t, s.Save(id, note{ID: id}))
	}

	all, err := s.FindAll(nil)
	require.NoError(t, err)
	ids := make([]int64, 0, len(all))
	for _, n := range all {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{-1, 2, 3, 10}, ids)

	big, err := s.FindAll(Chain(
		Where(func(n note) bool { return n.ID > 2 }),
		Map(func(n note) note { n.Text = "big"; return n }),
	))
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 3, Text: "big"}, {ID: 10, Text: "big"}}, big)
}

func TestFindAllSkipsCorruptEntries(t *testing.T) {
	s := openNotes(t)
	require.NoError(t, s.Save(1, note{ID: 1, Text: "ok"}))

	bad, _ := codec.KeyOf(int64(2))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("notes")).Put(bad, []byte("{not json"))
	})
	require.NoError(t, err)

	all, err := s.FindAll(nil)
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 1, Text: "ok"}}, all)

	_, _, err = s.Find(2)
	assert.ErrorIs(t, err, fault.ErrSerialization)
}

func TestDelete(t *testing.T) {
	s := openNotes(t)
	require.NoError(t, s.Save(1, note{ID: 1}))

	removed, err := s.Delete(1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(1)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTxnVisibilityAndRollback(t *testing.T) {
	s := openNotes(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, s.SaveTx(tx, 7, note{ID: 7, Text: "pending"}))

	got, found, err := s.FindTx(tx, 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "pending", got.Text)

	require.NoError(t, tx.Rollback())
	assert.True(t, tx.Done())

	_, found, err = s.Find(7)
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, s.SaveTx(tx, 7, note{}), fault.ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(), fault.ErrTxClosed)
	assert.NoError(t, tx.Rollback())
}

func TestTxnCommit(t *testing.T) {
	s := openNotes(t)
	require.NoError(t, s.Save(1, note{ID: 1}))

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, s.SaveTx(tx, 2, note{ID: 2}))
	removed, err := s.DeleteTx(tx, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, s.TombstoneTx(tx, 3))
	require.NoError(t, tx.Commit())

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, keys)
}

func TestTxnFromAnotherStore(t *testing.T) {
	a := openNotes(t)
	b := openNotes(t)

	tx, err := a.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	assert.ErrorIs(t, b.SaveTx(tx, 1, note{}), fault.ErrForeignTx)
}

func TestTxnOnClosedStore(t *testing.T) {
	s, err := Open[int64, note](t.TempDir(), "notes")
	require.NoError(t, err)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SaveTx(tx, 1, note{}), fault.ErrClosed)
	_, _, err = s.FindTx(tx, 1)
	assert.ErrorIs(t, err, fault.ErrClosed)
	_, err = s.Begin()
	assert.ErrorIs(t, err, fault.ErrClosed)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[string, note](dir, "notes")
	require.NoError(t, err)
	require.NoError(t, s.Save("k", note{Text: "kept"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get("k")
	assert.ErrorIs(t, err, fault.ErrClosed)

	s, err = Open[string, note](dir, "notes")
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Text)
}

func TestEmptyKeyRejected(t *testing.T) {
	s, err := Open[string, note](t.TempDir(), "notes")
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Save("", note{}), fault.ErrInvalidArgument)
}

func TestOpenTimeoutWhileLocked(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[int64, note](dir, "notes")
	require.NoError(t, err)
	defer s.Close()

	_, err = Open[int64, note](dir, "notes", WithTimeout(50*time.Millisecond))
	assert.ErrorIs(t, err, fault.ErrStorageEngine)
}

func TestDrop(t *testing.T) {
	s, err := Open[int64, note](t.TempDir(), "notes")
	require.NoError(t, err)
	require.NoError(t, s.Save(1, note{}))
	require.NoError(t, s.Drop())

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}
