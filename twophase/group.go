// Package twophase coordinates a write that spans several single-file
// transactions: every participant is opened and written first, then all of
// them are committed, or all of them are rolled back.
package twophase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/metrics"
)

// Participant is one open transaction taking part in a group.
type Participant interface {
	Name() string
	Commit() error
	Rollback() error
}

// Group is a set of participants finalized together. A Group is used by a
// single goroutine and finalized once.
type Group struct {
	id           uuid.UUID
	operation    string
	participants []Participant
	done         bool
}

// New starts an empty group for operation, which labels logs and metrics.
func New(operation string) *Group {
	return &Group{id: uuid.New(), operation: operation}
}

// ID identifies the group in logs.
func (g *Group) ID() uuid.UUID {
	return g.id
}

// Add enlists p. Participants are committed in the order they were added.
func (g *Group) Add(p Participant) {
	g.participants = append(g.participants, p)
}

// Len returns the number of participants.
func (g *Group) Len() int {
	return len(g.participants)
}

// Join opens a participant with begin and enlists it. When begin fails the
// participants opened so far are rolled back.
func Join[P Participant](g *Group, begin func() (P, error)) (P, error) {
	p, err := begin()
	if err != nil {
		g.Rollback()
		var zero P
		return zero, fmt.Errorf("%s: begin participant: %w: %w", g.operation, fault.ErrCoordination, err)
	}
	g.Add(p)
	return p, nil
}

// Commit commits every participant in order. If one fails, the participants
// not yet committed are rolled back. The error wraps fault.ErrCoordination,
// and fault.ErrPartialCommit when an earlier participant had already committed.
func (g *Group) Commit() error {
	if g.done {
		return fmt.Errorf("%s: group already finalized: %w", g.operation, fault.ErrTxClosed)
	}
	g.done = true

	for i, p := range g.participants {
		err := p.Commit()
		if err == nil {
			continue
		}

		rollbackErr := rollbackAll(g.participants[i+1:])
		if i == 0 {
			slog.Warn("Group.Commit() - commit failed, rolled back", "group", g.id.String(), "operation", g.operation, "participant", p.Name(), "err", err)
			metrics.GroupRollbacks.WithLabelValues(g.operation).Inc()
			return errors.Join(fmt.Errorf("%s: commit %s: %w: %w", g.operation, p.Name(), fault.ErrCoordination, err), rollbackErr)
		}

		committed := make([]string, 0, i)
		for _, c := range g.participants[:i] {
			committed = append(committed, c.Name())
		}
		slog.Error("Group.Commit() - partial commit", "group", g.id.String(), "operation", g.operation, "participant", p.Name(), "committed", committed, "err", err)
		metrics.PartialCommits.WithLabelValues(g.operation).Inc()
		return errors.Join(fmt.Errorf("%s: commit %s after %v: %w: %w", g.operation, p.Name(), committed, fault.ErrPartialCommit, err), rollbackErr)
	}

	slog.Debug("Group.Commit() - committed", "group", g.id.String(), "operation", g.operation, "participants", len(g.participants))
	metrics.GroupCommits.WithLabelValues(g.operation).Inc()
	return nil
}

// Rollback rolls back every participant. It is safe to call after Commit,
// and more than once.
func (g *Group) Rollback() error {
	if g.done {
		return nil
	}
	g.done = true
	slog.Warn("Group.Rollback() - rolling back", "group", g.id.String(), "operation", g.operation, "participants", len(g.participants))
	metrics.GroupRollbacks.WithLabelValues(g.operation).Inc()
	return rollbackAll(g.participants)
}

func rollbackAll(ps []Participant) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
