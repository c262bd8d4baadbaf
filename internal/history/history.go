// Package history implements linear snapshot-based undo/redo over scene contents.
package history

import (
	"fmt"
	"slices"

	"github.com/jinzhu/copier"

	"github.com/hpungsan/blockcad/sdk"
)

// DefaultCapacity is the number of snapshots kept before the oldest is evicted.
const DefaultCapacity = 50

// minCapacity keeps room for the current checkpoint plus one earlier state.
const minCapacity = 2

// Engine is the undo manager. It holds full deep copies of the block sequence
// and a cursor at the current snapshot.
//
// The live scene captured by Undo at the top of the stack is held in tip,
// outside the capped stack, so capturing it never evicts a checkpoint.
//
// Invariant: 0 <= cursor < len(stack) whenever the stack is non-empty.
// Invariant: atTip implies tip != nil and cursor == len(stack)-1.
type Engine struct {
	stack    [][]sdk.Block
	cursor   int
	tip      []sdk.Block
	atTip    bool
	capacity int
}

// New returns an empty engine holding at most capacity snapshots.
// Non-positive capacity selects DefaultCapacity.
func New(capacity int) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Engine{capacity: capacity}
}

// Checkpoint discards any redo history and pushes a copy of current as the new top.
func (e *Engine) Checkpoint(current []sdk.Block) {
	switch {
	case e.atTip && !slices.Equal(current, e.tip):
		// Edited after redoing to the tip: the tip becomes a real checkpoint.
		e.push(e.tip)
	case len(e.stack) > 0:
		e.stack = e.stack[:e.cursor+1]
	}
	e.tip, e.atTip = nil, false
	e.push(clone(current))
}

// Undo steps back one snapshot and returns a copy of it for the caller to restore.
//
// When the cursor is at the top and current has diverged from the top snapshot
// (edits made after the last checkpoint), current is kept as the tip so Redo can
// return to it, and the top snapshot is restored. It reports false when there
// is nothing earlier to go back to.
func (e *Engine) Undo(current []sdk.Block) ([]sdk.Block, bool) {
	if len(e.stack) == 0 {
		return nil, false
	}
	if e.atTip {
		if !slices.Equal(current, e.tip) {
			e.push(e.tip)
			e.tip = clone(current)
		}
		e.atTip = false
		return clone(e.stack[e.cursor]), true
	}
	if e.tip == nil && e.cursor == len(e.stack)-1 && !slices.Equal(current, e.stack[e.cursor]) {
		e.tip = clone(current)
		return clone(e.stack[e.cursor]), true
	}
	if e.cursor == 0 {
		return nil, false
	}
	e.cursor--
	return clone(e.stack[e.cursor]), true
}

// Redo steps forward one snapshot, or to the captured tip from the top, and
// returns a copy of it.
func (e *Engine) Redo() ([]sdk.Block, bool) {
	if e.cursor < len(e.stack)-1 {
		e.cursor++
		return clone(e.stack[e.cursor]), true
	}
	if e.tip != nil && !e.atTip {
		e.atTip = true
		return clone(e.tip), true
	}
	return nil, false
}

// Reset drops all snapshots.
func (e *Engine) Reset() {
	e.stack = nil
	e.cursor = 0
	e.tip, e.atTip = nil, false
}

// Len returns the number of stored checkpoints. The captured tip is not counted.
func (e *Engine) Len() int { return len(e.stack) }

// Cursor returns the index of the current snapshot.
func (e *Engine) Cursor() int { return e.cursor }

// Capacity returns the maximum number of snapshots.
func (e *Engine) Capacity() int { return e.capacity }

// CanUndo reports whether a snapshot exists before the current position.
func (e *Engine) CanUndo() bool { return e.cursor > 0 || e.atTip }

// CanUndoFrom reports whether Undo(current) would restore an earlier snapshot.
func (e *Engine) CanUndoFrom(current []sdk.Block) bool {
	if len(e.stack) == 0 {
		return false
	}
	if e.CanUndo() {
		return true
	}
	return e.tip == nil && e.cursor == len(e.stack)-1 && !slices.Equal(current, e.stack[e.cursor])
}

// CanRedo reports whether a snapshot or the captured tip lies ahead.
func (e *Engine) CanRedo() bool {
	return e.cursor < len(e.stack)-1 || (e.tip != nil && !e.atTip)
}

// Snapshot returns a copy of the snapshot at index i.
func (e *Engine) Snapshot(i int) []sdk.Block {
	return clone(e.stack[i])
}

// push appends s, moves the cursor to it, and evicts the oldest snapshot when over
// capacity. Eviction shifts the cursor down by one so it keeps pointing at s.
func (e *Engine) push(s []sdk.Block) {
	e.stack = append(e.stack, s)
	if len(e.stack) > e.capacity {
		e.stack[0] = nil
		e.stack = slices.Delete(e.stack, 0, 1)
	}
	e.cursor = len(e.stack) - 1
}

// clone returns an independent deep copy of blocks. The result is never nil.
// copier only fails on mismatched types, so an error here is a programming bug.
func clone(blocks []sdk.Block) []sdk.Block {
	out := make([]sdk.Block, 0, len(blocks))
	if len(blocks) == 0 {
		return out
	}
	if err := copier.CopyWithOption(&out, blocks, copier.Option{DeepCopy: true}); err != nil {
		panic(fmt.Sprintf("history: clone blocks: %v", err))
	}
	return out
}
