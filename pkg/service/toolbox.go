package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
)

// Toolbox owns the services of a run by name.
//
// Configuration:
//
//	services:
//	  - type: <registered type>
//	    name: <unique name>  # defaults to type
//	    ...                  # passed to the service's Configure
type Toolbox struct {
	registry *Registry
	log      *zap.Logger

	services map[string]Service
	order    []string
	started  []Starter
}

// Option configures a Toolbox.
type Option func(*Toolbox)

// WithRegistry sets the service factory.
func WithRegistry(r *Registry) Option {
	return func(tb *Toolbox) { tb.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(tb *Toolbox) { tb.log = logging.OrNop(l).Named("services") }
}

// NewToolbox creates an empty Toolbox.
func NewToolbox(opts ...Option) *Toolbox {
	tb := &Toolbox{
		registry: defaultRegistry,
		log:      zap.NewNop(),
		services: make(map[string]Service),
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// Configure builds and configures every entry of the services list.
func (tb *Toolbox) Configure(node *param.Node) error {
	if !node.Has("services") {
		return nil
	}
	arr, err := node.Array("services")
	if err != nil {
		return err
	}
	for _, item := range arr.Items() {
		entry, ok := item.(*param.Node)
		if !ok {
			return param.Errorf(item.Path(), "service entry must be a node, found %s", item.Kind())
		}
		typ, err := entry.String("type", "")
		if err != nil {
			return err
		}
		if typ == "" {
			return param.Errorf(entry.Path(), "service entry has no type")
		}
		name, err := entry.String("name", typ)
		if err != nil {
			return err
		}
		if tb.HasService(name) {
			return param.Wrap(entry.Path(), ErrDuplicateName, fmt.Sprintf("service %q", name))
		}
		s, err := tb.registry.Build(typ, name)
		if err != nil {
			return param.Wrap(entry.Path(), err, "cannot build service")
		}
		if err := s.Configure(entry); err != nil {
			return param.Wrap(entry.Path(), err, fmt.Sprintf("configure service %q", name))
		}
		tb.add(name, s)
		tb.log.Info("service added", zap.String("name", name), zap.String("type", typ))
	}
	return nil
}

func (tb *Toolbox) add(name string, s Service) {
	tb.services[name] = s
	tb.order = append(tb.order, name)
}

// AddService registers s under name. It returns false if name is taken.
func (tb *Toolbox) AddService(name string, s Service) bool {
	if s == nil {
		return false
	}
	if tb.HasService(name) {
		tb.log.Warn("service already exists", zap.String("name", name))
		return false
	}
	tb.add(name, s)
	return true
}

// AddServiceType builds an unconfigured service of type typ under name.
func (tb *Toolbox) AddServiceType(typ, name string) bool {
	if tb.HasService(name) {
		tb.log.Warn("service already exists", zap.String("name", name))
		return false
	}
	s, err := tb.registry.Build(typ, name)
	if err != nil {
		tb.log.Error("cannot build service", zap.String("type", typ), zap.Error(err))
		return false
	}
	tb.add(name, s)
	return true
}

// GetService returns the named service, or nil.
func (tb *Toolbox) GetService(name string) Service { return tb.services[name] }

// HasService reports whether name is registered.
func (tb *Toolbox) HasService(name string) bool {
	_, ok := tb.services[name]
	return ok
}

// CouldBuild reports whether the factory knows typ.
func (tb *Toolbox) CouldBuild(typ string) bool { return tb.registry.CouldBuild(typ) }

// ReleaseService removes name and hands the service to the caller.
func (tb *Toolbox) ReleaseService(name string) Service {
	s, ok := tb.services[name]
	if !ok {
		return nil
	}
	delete(tb.services, name)
	for i, n := range tb.order {
		if n == name {
			tb.order = append(tb.order[:i], tb.order[i+1:]...)
			break
		}
	}
	return s
}

// RemoveService drops name. It returns false if name is unknown.
func (tb *Toolbox) RemoveService(name string) bool {
	return tb.ReleaseService(name) != nil
}

// ClearServices drops every service.
func (tb *Toolbox) ClearServices() {
	tb.services = make(map[string]Service)
	tb.order = nil
	tb.started = nil
}

// ServiceNames returns service names in the order they were added.
func (tb *Toolbox) ServiceNames() []string { return append([]string(nil), tb.order...) }

// StartAll starts every Starter concurrently. If any fails, the ones that
// did start are stopped again and the first error is returned.
func (tb *Toolbox) StartAll(ctx context.Context) error {
	starters := tb.starters()
	ok := make([]bool, len(starters))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range starters {
		g.Go(func() error {
			if err := s.Start(gctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			ok[i] = true
			return nil
		})
	}
	err := g.Wait()
	for i, s := range starters {
		if ok[i] {
			tb.started = append(tb.started, s)
		}
	}
	if err != nil {
		if stopErr := tb.StopAll(context.WithoutCancel(ctx)); stopErr != nil {
			tb.log.Warn("stop after failed start", zap.Error(stopErr))
		}
		return err
	}
	tb.log.Debug("services started", zap.Int("count", len(starters)))
	return nil
}

// StopAll stops every started service concurrently and returns the first
// error.
func (tb *Toolbox) StopAll(ctx context.Context) error {
	started := tb.started
	tb.started = nil
	var g errgroup.Group
	for _, s := range started {
		g.Go(func() error {
			if err := s.Stop(ctx); err != nil {
				return fmt.Errorf("stop service: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (tb *Toolbox) starters() []Starter {
	var out []Starter
	for _, name := range tb.order {
		if s, ok := tb.services[name].(Starter); ok {
			out = append(out, s)
		}
	}
	return out
}
