package processors

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// Printer logs the structure of every frame it receives.
//
// Configuration:
//
//	level: debug | info | warn  # default info
type Printer struct {
	*processor.Base
	level zapcore.Level
}

// NewPrinter creates a Printer.
func NewPrinter(name string) *Printer {
	p := &Printer{Base: processor.NewBase(name), level: zapcore.InfoLevel}
	processor.NewFrameSlot("frame", p, p.print, nil)
	return p
}

func (p *Printer) Configure(node *param.Node) error {
	s, err := node.String("level", p.level.String())
	if err != nil {
		return err
	}
	lvl, err := logging.ParseLevel(s)
	if err != nil {
		return param.Wrap(node.Path(), err, "invalid level")
	}
	p.level = lvl
	return nil
}

func (p *Printer) print(f data.Handle) error {
	if ce := p.Logger().Check(p.level, "frame"); ce != nil {
		ce.Write(zap.Uint64("counter", f.Counter), zap.String("frame", data.Describe(f)))
	}
	return nil
}
