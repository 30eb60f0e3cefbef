package processors

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// FrameSource emits a fixed number of empty frames, numbered from zero, and
// marks the last one.
//
// Configuration:
//
//	count: <uint>   # frames to emit; default 1
//	rate: <float>   # frames per second; 0 means unlimited
//	burst: <uint>   # frames allowed back to back; default 1
type FrameSource struct {
	*processor.Base

	count   uint
	limiter *rate.Limiter
	out     *processor.Signal[data.Handle]
}

// NewFrameSource creates a FrameSource.
func NewFrameSource(name string) *FrameSource {
	s := &FrameSource{
		Base:    processor.NewBase(name),
		count:   1,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	s.out = processor.NewSignal[data.Handle]("frame", s)
	return s
}

func (s *FrameSource) Configure(node *param.Node) error {
	count, err := node.Uint("count", s.count)
	if err != nil {
		return err
	}
	perSec, err := node.Float("rate", 0)
	if err != nil {
		return err
	}
	if perSec < 0 || math.IsNaN(perSec) {
		return param.Errorf(node.Path(), "rate must not be negative")
	}
	burst, err := node.Uint("burst", 1)
	if err != nil {
		return err
	}
	if burst == 0 {
		return param.Errorf(node.Path(), "burst must be positive")
	}

	s.count = count
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	s.limiter = rate.NewLimiter(limit, int(burst))
	return nil
}

// Run emits count frames, waiting on the rate limiter before each.
func (s *FrameSource) Run(ctx context.Context) error {
	for i := range s.count {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("frame source %q: %w", s.Name(), control.ErrQuitChain)
			}
			return fmt.Errorf("frame source %q: rate limit: %w", s.Name(), err)
		}
		f := data.NewFrame()
		f.Counter = uint64(i)
		f.LastData = i == s.count-1
		if err := s.out.Emit(f); err != nil {
			if errors.Is(err, control.ErrQuitChain) {
				s.Logger().Debug("chain quit", zap.Uint("frames", i))
			}
			return err
		}
	}
	return nil
}
