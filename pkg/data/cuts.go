package data

import (
	"fmt"
	"sort"
	"strings"
)

// CutResult is one named pass/fail result at a fixed mask position.
type CutResult struct {
	Name  string
	State bool // true means the frame was cut
}

// CutStatus is the ordered set of cut results attached to a frame. Results are
// addressed either by name or by mask position; positions may be sparse.
type CutStatus struct {
	results map[uint]CutResult
}

// Assign places a result named name at pos, replacing whatever was there.
// Names are unique: an existing result with the same name at another position
// is removed.
func (c *CutStatus) Assign(pos uint, name string, state bool) error {
	if name == "" {
		return fmt.Errorf("cut at position %d: empty name", pos)
	}
	if c.results == nil {
		c.results = make(map[uint]CutResult)
	}
	if old, ok := c.position(name); ok && old != pos {
		delete(c.results, old)
	}
	c.results[pos] = CutResult{Name: name, State: state}
	return nil
}

// RemoveByName drops the named result.
func (c *CutStatus) RemoveByName(name string) {
	if pos, ok := c.position(name); ok {
		delete(c.results, pos)
	}
}

// RemoveAt drops the result at pos.
func (c *CutStatus) RemoveAt(pos uint) { delete(c.results, pos) }

// Has reports whether a result with this name is assigned.
func (c *CutStatus) Has(name string) bool {
	_, ok := c.position(name)
	return ok
}

// HasAt reports whether a result is assigned at pos.
func (c *CutStatus) HasAt(pos uint) bool {
	_, ok := c.results[pos]
	return ok
}

// State returns the state of the named result.
func (c *CutStatus) State(name string) (bool, error) {
	pos, ok := c.position(name)
	if !ok {
		return false, fmt.Errorf("cut %q: %w", name, ErrNotPresent)
	}
	return c.results[pos].State, nil
}

// StateAt returns the state of the result at pos.
func (c *CutStatus) StateAt(pos uint) (bool, error) {
	r, ok := c.results[pos]
	if !ok {
		return false, fmt.Errorf("cut position %d: %w", pos, ErrNotPresent)
	}
	return r.State, nil
}

// SetState updates the named result.
func (c *CutStatus) SetState(name string, state bool) error {
	pos, ok := c.position(name)
	if !ok {
		return fmt.Errorf("cut %q: %w", name, ErrNotPresent)
	}
	c.results[pos] = CutResult{Name: name, State: state}
	return nil
}

// SetStateAt updates the result at pos.
func (c *CutStatus) SetStateAt(pos uint, state bool) error {
	r, ok := c.results[pos]
	if !ok {
		return fmt.Errorf("cut position %d: %w", pos, ErrNotPresent)
	}
	r.State = state
	c.results[pos] = r
	return nil
}

// Len returns the number of assigned results.
func (c *CutStatus) Len() int { return len(c.results) }

// IsCut reports whether any result is set.
func (c *CutStatus) IsCut() bool {
	for _, r := range c.results {
		if r.State {
			return true
		}
	}
	return false
}

// IsCutMask reports whether any result whose position bit is set in mask is
// itself set. Only positions below 64 are addressable this way.
func (c *CutStatus) IsCutMask(mask uint64) bool {
	for pos, r := range c.results {
		if pos < 64 && mask&(1<<pos) != 0 && r.State {
			return true
		}
	}
	return false
}

// IsCutString is IsCutMask with the mask written as a string of '0' and '1'
// characters, character i selecting position i.
func (c *CutStatus) IsCutString(mask string) (bool, error) {
	for i, ch := range mask {
		switch ch {
		case '0':
		case '1':
			if r, ok := c.results[uint(i)]; ok && r.State {
				return true, nil
			}
		default:
			return false, fmt.Errorf("cut mask %q: invalid character %q", mask, ch)
		}
	}
	return false, nil
}

// Present returns the assigned result names in position order.
func (c *CutStatus) Present() []string {
	positions := c.positions()
	names := make([]string, len(positions))
	for i, pos := range positions {
		names[i] = c.results[pos].Name
	}
	return names
}

func (c *CutStatus) String() string {
	positions := c.positions()
	parts := make([]string, len(positions))
	for i, pos := range positions {
		r := c.results[pos]
		parts[i] = fmt.Sprintf("%d:%s=%t", pos, r.Name, r.State)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (c *CutStatus) positions() []uint {
	out := make([]uint, 0, len(c.results))
	for pos := range c.results {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *CutStatus) position(name string) (uint, bool) {
	for pos, r := range c.results {
		if r.Name == name {
			return pos, true
		}
	}
	return 0, false
}
