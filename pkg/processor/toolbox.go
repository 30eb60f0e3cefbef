package processor

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/service"
)

// Toolbox owns the processors of a run by name, wires their signals and slots,
// and keeps the run queue.
//
// Configuration:
//
//	processors:            # built in order
//	  - type: <registered type>
//	    name: <unique name>  # defaults to type
//	    ...                  # passed to the processor's Configure
//	connections:
//	  - signal: "<processor>:<signal>"
//	    slot: "<processor>:<slot>"
//	    order: <int>         # optional
//	    breakpoint: <bool>   # optional; pauses every emission of the signal
//	run-queue:
//	  - <primary>            # a group of one
//	  - [<primary>, ...]     # a concurrent group
//
// The toolbox is not safe for concurrent use and must be fully configured
// before a run starts.
type Toolbox struct {
	registry *Registry
	services *service.Toolbox
	log      *zap.Logger
	ctrl     control.Control

	procs map[string]Processor
	types map[string]string
	order []string
	queue RunQueue
}

// ToolboxOption configures a Toolbox.
type ToolboxOption func(*Toolbox)

// WithRegistry sets the processor factory; the default registry is used
// otherwise.
func WithRegistry(r *Registry) ToolboxOption {
	return func(tb *Toolbox) { tb.registry = r }
}

// WithServices makes svc available to processors implementing service.User.
func WithServices(svc *service.Toolbox) ToolboxOption {
	return func(tb *Toolbox) {
		if svc != nil {
			tb.services = svc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ToolboxOption {
	return func(tb *Toolbox) { tb.log = logging.OrNop(l).Named("toolbox") }
}

// NewToolbox creates an empty Toolbox.
func NewToolbox(opts ...ToolboxOption) *Toolbox {
	tb := &Toolbox{
		registry: defaultRegistry,
		services: service.NewToolbox(),
		log:      zap.NewNop(),
		procs:    make(map[string]Processor),
		types:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// Registry returns the processor factory.
func (tb *Toolbox) Registry() *Registry { return tb.registry }

// Configure builds processors, connections, and the run queue from node.
func (tb *Toolbox) Configure(node *param.Node) error {
	if node.Has("processors") {
		arr, err := node.Array("processors")
		if err != nil {
			return err
		}
		if err := tb.ConfigureProcessors(arr); err != nil {
			return err
		}
	} else {
		tb.log.Warn("no processors configured")
	}

	if node.Has("connections") {
		arr, err := node.Array("connections")
		if err != nil {
			return err
		}
		if err := tb.ConfigureConnections(arr); err != nil {
			return err
		}
	}

	if node.Has("run-queue") {
		arr, err := node.Array("run-queue")
		if err != nil {
			return err
		}
		if err := tb.ConfigureRunQueue(arr); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureProcessors builds and configures one processor per entry.
func (tb *Toolbox) ConfigureProcessors(arr *param.Array) error {
	for _, item := range arr.Items() {
		entry, ok := item.(*param.Node)
		if !ok {
			return param.Errorf(item.Path(), "processor entry must be a node, found %s", item.Kind())
		}
		typ, err := entry.String("type", "")
		if err != nil {
			return err
		}
		if typ == "" {
			return param.Errorf(entry.Path(), "processor entry has no type")
		}
		name, err := entry.String("name", typ)
		if err != nil {
			return err
		}
		if tb.HasProcessor(name) {
			return param.Wrap(entry.Path(), ErrDuplicateName, fmt.Sprintf("processor %q", name))
		}

		p, err := tb.registry.Build(typ, name)
		if err != nil {
			return param.Wrap(entry.Path(), err, "cannot build processor")
		}
		p.SetLogger(tb.log.Named("processor"))
		if err := p.Configure(entry); err != nil {
			return param.Wrap(entry.Path(), err, fmt.Sprintf("configure processor %q", name))
		}
		if user, ok := p.(service.User); ok {
			if err := user.UseServices(tb.services); err != nil {
				return param.Wrap(entry.Path(), err, fmt.Sprintf("processor %q services", name))
			}
		}
		tb.add(name, typ, p)
		tb.log.Info("processor added", zap.String("name", name), zap.String("type", typ))
	}
	return nil
}

// ConfigureConnections wires every entry. Any failed connection is fatal.
func (tb *Toolbox) ConfigureConnections(arr *param.Array) error {
	for _, item := range arr.Items() {
		entry, ok := item.(*param.Node)
		if !ok {
			return param.Errorf(item.Path(), "connection entry must be a node, found %s", item.Kind())
		}
		v, err := entry.Value("signal")
		if err != nil {
			return err
		}
		sig, err := v.AsString()
		if err != nil {
			return err
		}
		if v, err = entry.Value("slot"); err != nil {
			return err
		}
		slot, err := v.AsString()
		if err != nil {
			return err
		}
		order, err := entry.Int("order", NoOrder)
		if err != nil {
			return err
		}
		if err := tb.connect(sig, slot, order); err != nil {
			return param.Wrap(entry.Path(), err, "unable to make connection")
		}

		bp, err := entry.Bool("breakpoint", false)
		if err != nil {
			return err
		}
		if bp {
			if err := tb.setBreakpoint(sig, true); err != nil {
				return param.Wrap(entry.Path(), err, "unable to set breakpoint")
			}
		}
	}
	return nil
}

// ConfigureRunQueue appends one group per entry: a string is a group of one,
// an array a concurrent group.
func (tb *Toolbox) ConfigureRunQueue(arr *param.Array) error {
	for _, item := range arr.Items() {
		var names []string
		switch x := item.(type) {
		case *param.Value:
			name, err := x.AsString()
			if err != nil {
				return err
			}
			names = []string{name}
		case *param.Array:
			for _, sub := range x.Items() {
				v, ok := sub.(*param.Value)
				if !ok {
					return param.Errorf(sub.Path(), "run-queue group members must be names, found %s", sub.Kind())
				}
				name, err := v.AsString()
				if err != nil {
					return err
				}
				names = append(names, name)
			}
		default:
			return param.Errorf(item.Path(), "run-queue entry must be a name or a list of names, found %s", item.Kind())
		}
		if err := tb.pushGroup(names); err != nil {
			return param.Wrap(item.Path(), err, "invalid run-queue entry")
		}
	}
	return nil
}

// ─── connections ──────────────────────────────────────────────────────────────

// MakeConnection connects the signal at signalSpec to the slot at slotSpec,
// both "processor:name". It returns false, logging why, on failure.
func (tb *Toolbox) MakeConnection(signalSpec, slotSpec string) bool {
	return tb.MakeOrderedConnection(signalSpec, slotSpec, NoOrder)
}

// MakeOrderedConnection is MakeConnection with an explicit order.
func (tb *Toolbox) MakeOrderedConnection(signalSpec, slotSpec string, order int) bool {
	if err := tb.connect(signalSpec, slotSpec, order); err != nil {
		tb.log.Error("connection failed", zap.Error(err))
		return false
	}
	return true
}

func (tb *Toolbox) connect(signalSpec, slotSpec string, order int) error {
	sigProc, sigName, err := ParseAddress(signalSpec)
	if err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	slotProc, slotName, err := ParseAddress(slotSpec)
	if err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	from, ok := tb.procs[sigProc]
	if !ok {
		return fmt.Errorf("signal processor %q: %w", sigProc, ErrProcessorNotFound)
	}
	to, ok := tb.procs[slotProc]
	if !ok {
		return fmt.Errorf("slot processor %q: %w", slotProc, ErrProcessorNotFound)
	}
	if err := from.ConnectASlot(sigName, to, slotName, order); err != nil {
		return err
	}
	tb.log.Info("connected", zap.String("signal", signalSpec), zap.String("slot", slotSpec))
	return nil
}

// SetBreakpoint makes every emission of the signal at signalSpec pause.
func (tb *Toolbox) SetBreakpoint(signalSpec string) bool {
	return tb.setBreakpointLogged(signalSpec, true)
}

// RemoveBreakpoint clears the breakpoint of the signal at signalSpec.
func (tb *Toolbox) RemoveBreakpoint(signalSpec string) bool {
	return tb.setBreakpointLogged(signalSpec, false)
}

func (tb *Toolbox) setBreakpointLogged(signalSpec string, on bool) bool {
	if err := tb.setBreakpoint(signalSpec, on); err != nil {
		tb.log.Error("breakpoint change failed", zap.Bool("on", on), zap.Error(err))
		return false
	}
	return true
}

func (tb *Toolbox) setBreakpoint(signalSpec string, on bool) error {
	procName, sigName, err := ParseAddress(signalSpec)
	if err != nil {
		return err
	}
	p, ok := tb.procs[procName]
	if !ok {
		return fmt.Errorf("processor %q: %w", procName, ErrProcessorNotFound)
	}
	sig, ok := p.Signal(sigName)
	if !ok {
		return fmt.Errorf("%s: %w", signalSpec, ErrSignalNotFound)
	}
	sig.SetDoBreakpoint(on)
	tb.log.Debug("breakpoint changed", zap.String("signal", signalSpec), zap.Bool("on", on))
	return nil
}

// ─── registry ─────────────────────────────────────────────────────────────────

// GetProcessor returns the named processor, or nil.
func (tb *Toolbox) GetProcessor(name string) Processor {
	p, ok := tb.procs[name]
	if !ok {
		tb.log.Warn("processor not found", zap.String("name", name))
		return nil
	}
	return p
}

// HasProcessor reports whether name is registered.
func (tb *Toolbox) HasProcessor(name string) bool {
	_, ok := tb.procs[name]
	return ok
}

// CouldBuild reports whether the factory knows typ.
func (tb *Toolbox) CouldBuild(typ string) bool { return tb.registry.CouldBuild(typ) }

// AddProcessor registers p under name. It returns false if name is taken.
func (tb *Toolbox) AddProcessor(name string, p Processor) bool {
	if p == nil {
		tb.log.Error("refusing to add a nil processor", zap.String("name", name))
		return false
	}
	if tb.HasProcessor(name) {
		tb.log.Warn("processor already exists", zap.String("name", name))
		return false
	}
	tb.add(name, reflect.TypeOf(p).String(), p)
	return true
}

// AddProcessorType builds an unconfigured processor of type typ and registers
// it under name.
func (tb *Toolbox) AddProcessorType(typ, name string) bool {
	if tb.HasProcessor(name) {
		tb.log.Warn("processor already exists", zap.String("name", name))
		return false
	}
	p, err := tb.registry.Build(typ, name)
	if err != nil {
		tb.log.Error("cannot build processor", zap.String("type", typ), zap.Error(err))
		return false
	}
	p.SetLogger(tb.log.Named("processor"))
	tb.add(name, typ, p)
	return true
}

func (tb *Toolbox) add(name, typ string, p Processor) {
	if tb.ctrl != nil {
		p.SetControl(tb.ctrl)
	}
	tb.procs[name] = p
	tb.types[name] = typ
	tb.order = append(tb.order, name)
}

// ReleaseProcessor removes name from the toolbox and its run queue and hands
// the processor to the caller, connections intact.
func (tb *Toolbox) ReleaseProcessor(name string) Processor {
	p, ok := tb.procs[name]
	if !ok {
		tb.log.Warn("processor not found", zap.String("name", name))
		return nil
	}
	delete(tb.procs, name)
	delete(tb.types, name)
	for i, n := range tb.order {
		if n == name {
			tb.order = append(tb.order[:i], tb.order[i+1:]...)
			break
		}
	}
	tb.dropFromRunQueue(name)
	return p
}

// RemoveProcessor releases name and disconnects it from every peer.
func (tb *Toolbox) RemoveProcessor(name string) bool {
	p := tb.ReleaseProcessor(name)
	if p == nil {
		return false
	}
	p.DisconnectAll()
	return true
}

// ClearProcessors removes every processor and empties the run queue.
func (tb *Toolbox) ClearProcessors() {
	for _, name := range tb.order {
		tb.procs[name].DisconnectAll()
	}
	tb.procs = make(map[string]Processor)
	tb.types = make(map[string]string)
	tb.order = nil
	tb.queue = nil
}

// ProcessorNames returns processor names in the order they were added.
func (tb *Toolbox) ProcessorNames() []string { return append([]string(nil), tb.order...) }

// ProcessorType returns the type name a processor was built from.
func (tb *Toolbox) ProcessorType(name string) string { return tb.types[name] }

// SetControl attaches c to every current and future processor.
func (tb *Toolbox) SetControl(c control.Control) {
	tb.ctrl = c
	for _, name := range tb.order {
		tb.procs[name].SetControl(c)
	}
}
