package processor_test

import (
	"context"
	"errors"
	"sync"

	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// source is a primary that emits its configured value once.
type source struct {
	*processor.Base
	out   *processor.Signal[int]
	value int
	fail  error
}

func newSource(name string) *source {
	s := &source{Base: processor.NewBase(name)}
	s.out = processor.NewSignal[int]("value", s)
	return s
}

func (s *source) Configure(node *param.Node) error {
	v, err := node.Int("value", 0)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

func (s *source) Run(context.Context) error {
	if s.fail != nil {
		return s.fail
	}
	return s.out.Emit(s.value)
}

// sink records every int it receives.
type sink struct {
	*processor.Base
	in *processor.Slot[int]

	mu  sync.Mutex
	got []int
}

func newSink(name string) *sink {
	s := &sink{Base: processor.NewBase(name)}
	s.in = processor.NewSlot("value", s, func(v int) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.got = append(s.got, v)
		return nil
	})
	processor.NewSlot("text", s, func(string) error { return nil })
	return s
}

func (s *sink) Configure(*param.Node) error { return nil }

func (s *sink) received() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.got...)
}

// panicker is a primary whose Run panics.
type panicker struct{ *processor.Base }

func (p *panicker) Configure(*param.Node) error { return nil }
func (p *panicker) Run(context.Context) error { panic("boom") }

var errBoom = errors.New("boom")

func testRegistry() *processor.Registry {
	reg := processor.NewRegistry()
	reg.Register("source", func(name string) processor.Processor { return newSource(name) })
	reg.Register("sink", func(name string) processor.Processor { return newSink(name) })
	return reg
}
