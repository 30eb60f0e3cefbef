package processors

import (
	"context"
	"errors"

	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// Fail is a primary whose chain always fails with the configured message.
//
// Configuration:
//
//	message: <string>  # default "processing failed"
type Fail struct {
	*processor.Base
	message string
}

// NewFail creates a Fail.
func NewFail(name string) *Fail {
	return &Fail{Base: processor.NewBase(name), message: "processing failed"}
}

func (p *Fail) Configure(node *param.Node) error {
	var err error
	p.message, err = node.String("message", p.message)
	return err
}

func (p *Fail) Run(context.Context) error { return errors.New(p.message) }
