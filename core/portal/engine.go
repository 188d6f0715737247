package portal

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
)

// Ops
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpVote   = "vote"
)

// MutationError is returned when the remote store rejected a change. The local change was undone,
// and Message can be shown to the user as is.
type MutationError struct {
	Op      string
	Entity  string
	Message string
	Hint    string
	Err     error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Entity, e.Message, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

type (
	// undoFunc reverts a local change. It is called with the state locked.
	undoFunc func(s *State)

	// failure describes how to recover from a rejected change.
	failure struct {
		message string
		hint    string
		reload  bool // reload everything instead of undoing the local change
	}

	mutation struct {
		entity string
		op     string
		// apply changes the state, which is locked, and returns how to undo the change.
		apply func(s *State) (undoFunc, error)
		// remote persists the change. It runs without the lock.
		remote func(ctx context.Context) error
		// onFailure maps a remote error to the recovery to run.
		onFailure func(err error) failure
	}
)

// run applies the mutation locally, then remotely, and recovers from a remote failure.
func (c *Controller) run(ctx context.Context, m mutation) error {
	if err := c.checkReady(); err != nil {
		return err
	}

	c.mutex.Lock()
	undo, err := m.apply(&c.state)
	c.mutex.Unlock()
	if err != nil {
		return err
	}

	if err = m.remote(ctx); err == nil {
		observe(m.entity, m.op, outcomeOK)
		return nil
	}

	f := defaultFailure(m.entity, m.op)
	if m.onFailure != nil {
		f = m.onFailure(err)
	}
	mErr := &MutationError{Op: m.op, Entity: m.entity, Message: f.message, Hint: f.hint, Err: err}

	if f.reload {
		// the request context may be the reason of the failure
		if rErr := c.Load(context.WithoutCancel(ctx)); rErr != nil {
			c.logger.Error(fmt.Sprintf("portal: %s %s failed and reload failed: %v", m.op, m.entity, rErr), err, rErr)
			c.undo(undo)
			observe(m.entity, m.op, outcomeCompensated)
			return mErr
		}
		c.logger.Warn(fmt.Sprintf("portal: %s %s failed, data reloaded", m.op, m.entity), err)
		observe(m.entity, m.op, outcomeReloaded)
		return mErr
	}

	c.undo(undo)
	c.logger.Warn(fmt.Sprintf("portal: %s %s failed, change reverted", m.op, m.entity), err)
	observe(m.entity, m.op, outcomeCompensated)
	return mErr
}

func (c *Controller) undo(undo undoFunc) {
	if undo == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	undo(&c.state)
}

func defaultFailure(entity, op string) failure {
	noun := entityNouns[entity]
	if noun == "" {
		noun = "item"
	}
	return failure{message: fmt.Sprintf("Could not %s the %s. Your change was reverted, please try again.", op, noun)}
}

var entityNouns = map[string]string{
	core.TableSettings:      "school settings",
	core.TableClassGroups:   "class",
	core.TableUsers:         "user",
	core.TableAnnouncements: "announcement",
	core.TableExams:         "exam",
	core.TablePolls:         "poll",
	core.TableResources:     "resource",
}

// Local change helpers shared by the operations.

// insertLocal adds `item` first in the collection; undoing removes it.
func insertLocal[T identifiable](collection func(s *State) *[]T, item T) func(s *State) (undoFunc, error) {
	return func(s *State) (undoFunc, error) {
		items := collection(s)
		*items = prepend(*items, item)
		return func(s *State) {
			items := collection(s)
			*items = withoutID(*items, item.ItemID())
		}, nil
	}
}

// replaceLocal computes the new value of item `id` from its current one. `change` must not write
// through the memory it shares with the current value. Undoing puts the previous value of that item back.
func replaceLocal[T identifiable](collection func(s *State) *[]T, id string, change func(cur T) (T, error)) func(s *State) (undoFunc, error) {
	return func(s *State) (undoFunc, error) {
		items := collection(s)
		idx := indexByID(*items, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		prev := (*items)[idx]
		updated, err := change(prev)
		if err != nil {
			return nil, err
		}
		*items = replaceAt(*items, idx, updated)
		return func(s *State) {
			items := collection(s)
			if i := indexByID(*items, id); i >= 0 {
				*items = replaceAt(*items, i, prev)
			}
		}, nil
	}
}

// deleteLocal removes item `id`; undoing puts it back where it was unless it reappeared meanwhile.
func deleteLocal[T identifiable](collection func(s *State) *[]T, id string) func(s *State) (undoFunc, error) {
	return func(s *State) (undoFunc, error) {
		items := collection(s)
		idx := indexByID(*items, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		prev := (*items)[idx]
		*items = withoutID(*items, id)
		return func(s *State) { restoreLocal(collection(s), idx, prev) }, nil
	}
}

// restoreLocal inserts `item` back at `idx` when the collection does not hold it anymore.
func restoreLocal[T identifiable](items *[]T, idx int, item T) {
	if indexByID(*items, item.ItemID()) >= 0 {
		return
	}
	*items = insertAt(*items, idx, item)
}

// ignoreRowNotFound treats an item already gone from the remote store as deleted.
func ignoreRowNotFound(remote func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := remote(ctx); err != nil && errors.Cause(err) != core.ErrRowNotFound {
			return err
		}
		return nil
	}
}
