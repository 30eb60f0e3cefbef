// Package processors provides the built-in processors. Importing it registers
// them with processor.DefaultRegistry.
package processors

import (
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// Registered type names.
const (
	TypeValueSource = "value-source"
	TypeFrameSource = "frame-source"
	TypeDataQueue   = "data-queue"
	TypeCounter     = "counter"
	TypeCut         = "cut"
	TypePrinter     = "printer"
	TypeQuitAfter   = "quit-after"
	TypeFail        = "fail"
	TypeWait        = "wait"
)

func init() {
	RegisterAll(processor.DefaultRegistry())
}

// RegisterAll adds every built-in processor to r.
func RegisterAll(r *processor.Registry) {
	r.Register(TypeValueSource, func(name string) processor.Processor { return NewValueSource(name) })
	r.Register(TypeFrameSource, func(name string) processor.Processor { return NewFrameSource(name) })
	r.Register(TypeDataQueue, func(name string) processor.Processor { return NewDataQueue(name) })
	r.Register(TypeCounter, func(name string) processor.Processor { return NewCounter(name) })
	r.Register(TypeCut, func(name string) processor.Processor { return NewCut(name) })
	r.Register(TypePrinter, func(name string) processor.Processor { return NewPrinter(name) })
	r.Register(TypeQuitAfter, func(name string) processor.Processor { return NewQuitAfter(name) })
	r.Register(TypeFail, func(name string) processor.Processor { return NewFail(name) })
	r.Register(TypeWait, func(name string) processor.Processor { return NewWait(name) })
}
