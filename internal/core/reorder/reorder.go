// Package reorder computes a new session order from a drag gesture.
// It only rearranges ids; persistence goes through a Reorderer.
package reorder

import (
	"errors"
	"fmt"
	"slices"
)

// Placement is where the pointer sits relative to the hovered row
type Placement int

const (
	// Above the vertical midpoint: insert before the hovered item
	Above Placement = iota
	// Below the vertical midpoint: insert after the hovered item
	Below
)

func (p Placement) String() string {
	if p == Above {
		return "above"
	}
	return "below"
}

// Reorderer persists a complete order
type Reorderer interface {
	Reorder(ids []string) error
}

var ErrIndexOutOfRange = errors.New("index out of range")

// Drag is one gesture in progress. Hover indexes refer to the provisional
// order as currently displayed.
type Drag struct {
	original []string
	current  []string
	dragged  string
}

// Start begins dragging the item at index
func Start(order []string, index int) (*Drag, error) {
	if index < 0 || index >= len(order) {
		return nil, fmt.Errorf("start drag at %d of %d: %w", index, len(order), ErrIndexOutOfRange)
	}
	return &Drag{
		original: append([]string(nil), order...),
		current:  append([]string(nil), order...),
		dragged:  order[index],
	}, nil
}

// Dragged returns the id being moved
func (d *Drag) Dragged() string {
	return d.dragged
}

// Hover provisionally reinserts the dragged item next to the item at k.
// Hovering the dragged item itself, or an index outside the list, changes
// nothing. It reports whether the provisional order moved.
func (d *Drag) Hover(k int, pos Placement) bool {
	if k < 0 || k >= len(d.current) {
		return false
	}
	target := d.current[k]
	if target == d.dragged {
		return false
	}

	rest := make([]string, 0, len(d.current))
	for _, id := range d.current {
		if id != d.dragged {
			rest = append(rest, id)
		}
	}
	at := slices.Index(rest, target)
	if pos == Below {
		at++
	}

	next := make([]string, 0, len(d.current))
	next = append(next, rest[:at]...)
	next = append(next, d.dragged)
	next = append(next, rest[at:]...)

	moved := !slices.Equal(next, d.current)
	d.current = next
	return moved
}

// Order returns the provisional order
func (d *Drag) Order() []string {
	return append([]string(nil), d.current...)
}

// Changed reports whether the provisional order differs from the start
func (d *Drag) Changed() bool {
	return !slices.Equal(d.current, d.original)
}

// Drop applies the final hover and returns the resulting order
func (d *Drag) Drop(k int, pos Placement) ([]string, bool) {
	d.Hover(k, pos)
	return d.Order(), d.Changed()
}

// Cancel restores the order the drag started from
func (d *Drag) Cancel() []string {
	d.current = append([]string(nil), d.original...)
	return d.Order()
}

// Commit persists the provisional order through r. A drag that ends
// where it began writes nothing.
func (d *Drag) Commit(r Reorderer) (bool, error) {
	if !d.Changed() {
		return false, nil
	}
	if err := r.Reorder(d.Order()); err != nil {
		return true, err
	}
	return true, nil
}

// Event is a hover over index K
type Event struct {
	K   int
	Pos Placement
}

// Apply replays a complete gesture without persisting it
func Apply(order []string, from int, events []Event, drop Event) ([]string, bool, error) {
	d, err := Start(order, from)
	if err != nil {
		return nil, false, err
	}
	for _, ev := range events {
		d.Hover(ev.K, ev.Pos)
	}
	out, changed := d.Drop(drop.K, drop.Pos)
	return out, changed, nil
}

// Move places the item at from so that it ends up at index to
func Move(order []string, from, to int) ([]string, bool, error) {
	if to < 0 || to >= len(order) {
		return nil, false, fmt.Errorf("move to %d of %d: %w", to, len(order), ErrIndexOutOfRange)
	}
	pos := Above
	if to > from {
		pos = Below
	}
	return Apply(order, from, nil, Event{K: to, Pos: pos})
}
