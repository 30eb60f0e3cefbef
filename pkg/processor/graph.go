package processor

import (
	"fmt"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// Connection is one signal-to-slot link in the toolbox.
type Connection struct {
	Signal     string
	Slot       string
	Order      int
	Breakpoint bool
}

// Connections lists every link, grouped by the signal's processor in toolbox
// order and then by signal registration order.
func (tb *Toolbox) Connections() []Connection {
	var out []Connection
	for _, name := range tb.order {
		p := tb.procs[name]
		for _, sigName := range p.SignalNames() {
			sig, _ := p.Signal(sigName)
			for _, l := range sig.Connections() {
				out = append(out, Connection{
					Signal:     address(name, sigName),
					Slot:       address(l.Slot.Owner(), l.Slot.Name()),
					Order:      l.Order,
					Breakpoint: sig.DoBreakpoint(),
				})
			}
		}
	}
	return out
}

// DOT renders processors as nodes and connections as edges of a digraph
// called name. Primaries in the run queue are drawn bold; edges of signals
// with a breakpoint are red.
func (tb *Toolbox) DOT(name string) (string, error) {
	if name == "" {
		name = "nymph"
	}
	g := gographviz.NewGraph()
	if err := g.SetName(quote(name)); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	scheduled := make(map[string]bool)
	for _, group := range tb.queue {
		for _, e := range group {
			scheduled[e.Name] = true
		}
	}
	for _, procName := range tb.order {
		attrs := map[string]string{
			"shape": "box",
			"label": quote(procName + `\n(` + tb.types[procName] + ")"),
		}
		if scheduled[procName] {
			attrs["style"] = "bold"
		}
		if err := g.AddNode(quote(name), quote(procName), attrs); err != nil {
			return "", fmt.Errorf("add node %q: %w", procName, err)
		}
	}

	for _, c := range tb.Connections() {
		from, sigName, _ := ParseAddress(c.Signal)
		to, slotName, _ := ParseAddress(c.Slot)
		label := sigName + " -> " + slotName
		if c.Order != NoOrder {
			label += " #" + strconv.Itoa(c.Order)
		}
		attrs := map[string]string{"label": quote(label)}
		if c.Breakpoint {
			attrs["color"] = "red"
		}
		if err := g.AddEdge(quote(from), quote(to), true, attrs); err != nil {
			return "", fmt.Errorf("add edge %s -> %s: %w", c.Signal, c.Slot, err)
		}
	}
	return g.String(), nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
