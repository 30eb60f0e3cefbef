package processors

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// ValueSource emits an integer on its value signal when run and stores any
// integer it receives on its value slot.
//
// Configuration:
//
//	value: <int>  # emitted by Run; default 0
type ValueSource struct {
	*processor.Base

	value  int
	stored atomic.Int64
	out    *processor.Signal[int]
}

// NewValueSource creates a ValueSource.
func NewValueSource(name string) *ValueSource {
	v := &ValueSource{Base: processor.NewBase(name)}
	v.out = processor.NewSignal[int]("value", v)
	processor.NewSlot("value", v, v.store)
	return v
}

func (v *ValueSource) Configure(node *param.Node) error {
	n, err := node.Int("value", v.value)
	if err != nil {
		return err
	}
	v.value = n
	return nil
}

// Run emits the configured value.
func (v *ValueSource) Run(context.Context) error {
	v.Logger().Debug("emitting value", zap.Int("value", v.value))
	return v.out.Emit(v.value)
}

func (v *ValueSource) store(n int) error {
	v.stored.Store(int64(n))
	return nil
}

// Stored returns the last value received on the value slot.
func (v *ValueSource) Stored() int { return int(v.stored.Load()) }
