package processors

import (
	"fmt"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// QuitAfter passes frames on until limit frames have gone through, then ends
// its chain with a quit.
//
// Configuration:
//
//	limit: <uint>  # default 1
type QuitAfter struct {
	*processor.Base

	limit uint64
	seen  uint64
	out   *processor.Signal[data.Handle]
}

// NewQuitAfter creates a QuitAfter.
func NewQuitAfter(name string) *QuitAfter {
	q := &QuitAfter{Base: processor.NewBase(name), limit: 1}
	q.out = processor.NewSignal[data.Handle]("frame", q)
	processor.NewSlot("frame", q, q.pass)
	return q
}

func (q *QuitAfter) Configure(node *param.Node) error {
	limit, err := node.Uint("limit", uint(q.limit))
	if err != nil {
		return err
	}
	if limit == 0 {
		return param.Errorf(node.Path(), "limit must be positive")
	}
	q.limit = uint64(limit)
	return nil
}

func (q *QuitAfter) pass(f data.Handle) error {
	q.seen++
	if err := q.out.Emit(f); err != nil {
		return err
	}
	if q.seen >= q.limit {
		return control.QuitChain(fmt.Sprintf("%s: limit of %d frames reached", q.Name(), q.limit))
	}
	return nil
}
