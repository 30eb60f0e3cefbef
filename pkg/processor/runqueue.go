package processor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Entry is one scheduled primary processor.
type Entry struct {
	Name string
	Proc Primary
}

// Group is a set of primaries that run concurrently.
type Group []Entry

// Names returns the entry names.
func (g Group) Names() []string {
	names := make([]string, len(g))
	for i, e := range g {
		names[i] = e.Name
	}
	return names
}

// RunQueue is the ordered list of groups executed by a run, one group after
// another.
type RunQueue []Group

func (q RunQueue) String() string {
	parts := make([]string, len(q))
	for i, g := range q {
		names := g.Names()
		if len(names) == 1 {
			parts[i] = names[0]
		} else {
			parts[i] = "[" + strings.Join(names, ", ") + "]"
		}
	}
	return strings.Join(parts, " -> ")
}

// PushBackToRunQueue appends one group holding the named processors, which
// run concurrently. Every name must refer to a primary processor in the
// toolbox. It returns false, logging why, if the group is rejected.
func (tb *Toolbox) PushBackToRunQueue(names ...string) bool {
	if err := tb.pushGroup(names); err != nil {
		tb.log.Error("cannot add to run queue", zap.Strings("group", names), zap.Error(err))
		return false
	}
	return true
}

func (tb *Toolbox) pushGroup(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("empty run-queue group")
	}
	group := make(Group, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return fmt.Errorf("processor %q: %w in this group", name, ErrDuplicateName)
		}
		seen[name] = true
		p, ok := tb.procs[name]
		if !ok {
			return fmt.Errorf("processor %q: %w", name, ErrProcessorNotFound)
		}
		primary, ok := p.(Primary)
		if !ok {
			return fmt.Errorf("processor %q: %w", name, ErrNotPrimary)
		}
		group = append(group, Entry{Name: name, Proc: primary})
	}
	tb.queue = append(tb.queue, group)
	tb.log.Debug("run-queue group added", zap.Strings("group", names))
	return nil
}

// PopBackOfRunQueue removes the last group, if any.
func (tb *Toolbox) PopBackOfRunQueue() {
	if len(tb.queue) == 0 {
		return
	}
	tb.queue = tb.queue[:len(tb.queue)-1]
}

// ClearRunQueue removes every group.
func (tb *Toolbox) ClearRunQueue() {
	tb.queue = nil
}

// RunQueue returns a copy of the run queue.
func (tb *Toolbox) RunQueue() RunQueue {
	out := make(RunQueue, len(tb.queue))
	for i, g := range tb.queue {
		out[i] = append(Group(nil), g...)
	}
	return out
}

// dropFromRunQueue removes every entry for name, and any group left empty.
func (tb *Toolbox) dropFromRunQueue(name string) {
	var kept RunQueue
	for _, g := range tb.queue {
		var ng Group
		for _, e := range g {
			if e.Name != name {
				ng = append(ng, e)
			}
		}
		if len(ng) > 0 {
			kept = append(kept, ng)
		}
	}
	tb.queue = kept
}
