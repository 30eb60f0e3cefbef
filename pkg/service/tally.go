package service

import (
	"sort"
	"sync"

	"github.com/ravi-parthasarathy/nymph/pkg/param"
)

// TallyType is the registered type name of Tally.
const TallyType = "tally"

func init() {
	Register(TallyType, func(name string) Service { return NewTally(name) })
}

// Tally is a set of named counters safe for concurrent use.
//
// Configuration:
//
//	counters: [<name>, ...]  # pre-created at zero
type Tally struct {
	name string

	mu     sync.Mutex
	counts map[string]int64
}

// NewTally creates an empty Tally.
func NewTally(name string) *Tally {
	return &Tally{name: name, counts: make(map[string]int64)}
}

func (t *Tally) Name() string { return t.name }

// Configure pre-creates the listed counters.
func (t *Tally) Configure(node *param.Node) error {
	if !node.Has("counters") {
		return nil
	}
	arr, err := node.Array("counters")
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range arr.Items() {
		v, ok := item.(*param.Value)
		if !ok {
			return param.Errorf(item.Path(), "counter name must be a value")
		}
		key, err := v.AsString()
		if err != nil {
			return err
		}
		t.counts[key] = 0
	}
	return nil
}

// Add adds delta to counter key and returns the new value.
func (t *Tally) Add(key string, delta int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key] += delta
	return t.counts[key]
}

// Value returns counter key.
func (t *Tally) Value(key string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}

// Keys returns the counter names, sorted.
func (t *Tally) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.counts))
	for k := range t.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
