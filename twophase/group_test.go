package twophase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/tradestore/fault"
)

type fakeTx struct {
	name       string
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Name() string { return f.name }

func (f *fakeTx) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback() error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

func TestCommitAll(t *testing.T) {
	g := New("save")
	a, b := &fakeTx{name: "a"}, &fakeTx{name: "b"}
	g.Add(a)
	g.Add(b)

	require.NoError(t, g.Commit())
	assert.True(t, a.committed)
	assert.True(t, b.committed)

	require.NoError(t, g.Rollback())
	assert.False(t, a.rolledBack)

	assert.ErrorIs(t, g.Commit(), fault.ErrTxClosed)
}

func TestFirstCommitFailureRollsBackEverything(t *testing.T) {
	boom := errors.New("disk full")
	g := New("save")
	a, b := &fakeTx{name: "a", commitErr: boom}, &fakeTx{name: "b"}
	g.Add(a)
	g.Add(b)

	err := g.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrCoordination)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, fault.ErrPartialCommit)
	assert.True(t, b.rolledBack)
	assert.False(t, b.committed)
}

func TestLaterCommitFailureIsPartial(t *testing.T) {
	boom := errors.New("disk full")
	g := New("save")
	a := &fakeTx{name: "a"}
	b := &fakeTx{name: "b", commitErr: boom}
	c := &fakeTx{name: "c"}
	g.Add(a)
	g.Add(b)
	g.Add(c)

	err := g.Commit()
	assert.ErrorIs(t, err, fault.ErrPartialCommit)
	assert.ErrorIs(t, err, fault.ErrCoordination)
	assert.True(t, a.committed)
	assert.True(t, c.rolledBack)
}

func TestJoinFailureRollsBackOpened(t *testing.T) {
	g := New("delete")
	a := &fakeTx{name: "a"}
	_, err := Join(g, func() (*fakeTx, error) { return a, nil })
	require.NoError(t, err)

	_, err = Join(g, func() (*fakeTx, error) { return nil, errors.New("locked") })
	assert.ErrorIs(t, err, fault.ErrCoordination)
	assert.True(t, a.rolledBack)
	assert.Equal(t, 1, g.Len())
}

func TestRollbackAll(t *testing.T) {
	g := New("save")
	a, b := &fakeTx{name: "a"}, &fakeTx{name: "b"}
	g.Add(a)
	g.Add(b)

	require.NoError(t, g.Rollback())
	assert.True(t, a.rolledBack)
	assert.True(t, b.rolledBack)
	require.NoError(t, g.Rollback())
}
