package processor_test

import (
	"testing"

	gographviz "github.com/awalterschulze/gographviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

const toolboxYAML = `
processors:
  - type: source
    name: a
    value: 1
  - type: source
    name: b
  - type: source
    name: c
  - type: source
    name: d
  - type: sink
    name: out
connections:
  - signal: "a:value"
    slot: "out:value"
  - signal: "b:value"
    slot: "out:value"
    order: 1
    breakpoint: true
run-queue:
  - a
  - [b, c]
  - d
`

func configuredToolbox(t *testing.T, src string) *processor.Toolbox {
	t.Helper()
	node, err := param.ParseYAML([]byte(src))
	require.NoError(t, err)
	tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
	require.NoError(t, tb.Configure(node))
	return tb
}

func TestToolbox_Configure(t *testing.T) {
	tb := configuredToolbox(t, toolboxYAML)

	assert.Equal(t, []string{"a", "b", "c", "d", "out"}, tb.ProcessorNames())
	assert.Equal(t, "source", tb.ProcessorType("a"))
	assert.Equal(t, 1, tb.GetProcessor("a").(*source).value)

	q := tb.RunQueue()
	require.Len(t, q, 3)
	assert.Equal(t, []string{"a"}, q[0].Names())
	assert.Equal(t, []string{"b", "c"}, q[1].Names())
	assert.Equal(t, []string{"d"}, q[2].Names())
	assert.Equal(t, "a -> [b, c] -> d", q.String())

	conns := tb.Connections()
	require.Len(t, conns, 2)
	assert.Equal(t, processor.Connection{Signal: "a:value", Slot: "out:value", Order: processor.NoOrder}, conns[0])
	assert.Equal(t, processor.Connection{Signal: "b:value", Slot: "out:value", Order: 1, Breakpoint: true}, conns[1])
}

func TestToolbox_ConfigureErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown type", "processors:\n  - type: nope\n"},
		{"missing type", "processors:\n  - name: x\n"},
		{"duplicate name", "processors:\n  - type: sink\n  - type: sink\n"},
		{"bad processor config", "processors:\n  - type: source\n    value: ten\n"},
		{"missing signal", "processors:\n  - type: source\n  - type: sink\nconnections:\n  - signal: \"source:nope\"\n    slot: \"sink:value\"\n"},
		{"type mismatch", "processors:\n  - type: source\n  - type: sink\nconnections:\n  - signal: \"source:value\"\n    slot: \"sink:text\"\n"},
		{"unknown processor", "connections:\n  - signal: \"x:value\"\n    slot: \"y:value\"\n"},
		{"bad address", "processors:\n  - type: source\n  - type: sink\nconnections:\n  - signal: \"source\"\n    slot: \"sink:value\"\n"},
		{"connection without slot", "processors:\n  - type: source\nconnections:\n  - signal: \"source:value\"\n"},
		{"non-primary in queue", "processors:\n  - type: sink\nrun-queue:\n  - sink\n"},
		{"non-primary in group", "processors:\n  - type: source\n  - type: sink\nrun-queue:\n  - [source, sink]\n"},
		{"unknown in queue", "run-queue:\n  - ghost\n"},
		{"nested group", "processors:\n  - type: source\nrun-queue:\n  - [[source]]\n"},
		{"processors not a list", "processors: source\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			node, err := param.ParseYAML([]byte(tt.yaml))
			require.NoError(t, err)
			tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
			err = tb.Configure(node)
			require.Error(t, err)
			assert.True(t, param.IsConfigError(err), "got %v", err)
		})
	}
}

func TestToolbox_RunQueue(t *testing.T) {
	tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
	for _, n := range []string{"a", "b"} {
		require.True(t, tb.AddProcessorType("source", n))
	}
	require.True(t, tb.AddProcessorType("sink", "s"))

	assert.True(t, tb.PushBackToRunQueue("a"))
	assert.True(t, tb.PushBackToRunQueue("a", "b"))
	assert.False(t, tb.PushBackToRunQueue("s"))
	assert.False(t, tb.PushBackToRunQueue("ghost"))
	assert.False(t, tb.PushBackToRunQueue())
	assert.False(t, tb.PushBackToRunQueue("a", "a"))
	require.Len(t, tb.RunQueue(), 2)

	tb.PopBackOfRunQueue()
	require.Len(t, tb.RunQueue(), 1)

	tb.ClearRunQueue()
	assert.Empty(t, tb.RunQueue())
	tb.PopBackOfRunQueue()
}

func TestToolbox_RemoveAndRelease(t *testing.T) {
	tb := configuredToolbox(t, toolboxYAML)
	out := tb.GetProcessor("out").(*sink)
	a := tb.GetProcessor("a")

	released := tb.ReleaseProcessor("a")
	assert.Same(t, a, released)
	assert.False(t, tb.HasProcessor("a"))
	assert.Len(t, out.in.Signals(), 2, "release keeps connections")
	assert.Equal(t, "[b, c] -> d", tb.RunQueue().String())

	assert.True(t, tb.RemoveProcessor("b"))
	assert.Len(t, out.in.Signals(), 1, "remove disconnects")
	assert.Equal(t, "c -> d", tb.RunQueue().String())

	assert.False(t, tb.RemoveProcessor("b"))
	assert.Nil(t, tb.ReleaseProcessor("b"))
	assert.Nil(t, tb.GetProcessor("b"))

	tb.ClearProcessors()
	assert.Empty(t, tb.ProcessorNames())
	assert.Empty(t, tb.RunQueue())
	assert.Empty(t, out.in.Signals())
}

func TestToolbox_AddProcessor(t *testing.T) {
	tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
	assert.True(t, tb.CouldBuild("sink"))
	assert.False(t, tb.CouldBuild("nope"))

	s := newSink("s")
	assert.True(t, tb.AddProcessor("s", s))
	assert.False(t, tb.AddProcessor("s", newSink("s")))
	assert.False(t, tb.AddProcessor("n", nil))
	assert.False(t, tb.AddProcessorType("nope", "x"))
	assert.False(t, tb.AddProcessorType("sink", "s"))
	assert.Same(t, s, tb.GetProcessor("s"))
}

func TestToolbox_Connections(t *testing.T) {
	tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
	tb.AddProcessorType("source", "src")
	tb.AddProcessorType("sink", "snk")

	assert.True(t, tb.MakeConnection("src:value", "snk:value"))
	assert.True(t, tb.MakeOrderedConnection("src:value", "snk:value", 2), "duplicate is a no-op")
	assert.False(t, tb.MakeConnection("src:value", "snk:text"))
	assert.False(t, tb.MakeConnection("src:value", "ghost:value"))
	assert.False(t, tb.MakeConnection("bad", "snk:value"))
	require.Len(t, tb.Connections(), 1)

	assert.True(t, tb.SetBreakpoint("src:value"))
	assert.True(t, tb.Connections()[0].Breakpoint)
	assert.True(t, tb.RemoveBreakpoint("src:value"))
	assert.False(t, tb.Connections()[0].Breakpoint)
	assert.False(t, tb.SetBreakpoint("src:nope"))
	assert.False(t, tb.SetBreakpoint("ghost:value"))
}

func TestToolbox_SetControl(t *testing.T) {
	tb := processor.NewToolbox(processor.WithRegistry(testRegistry()))
	tb.AddProcessorType("source", "before")
	c := control.New()
	tb.SetControl(c)
	tb.AddProcessorType("source", "after")

	for _, name := range []string{"before", "after"} {
		src := tb.GetProcessor(name).(*source)
		assert.Equal(t, control.Control(c), src.Control(), name)
	}
}

func TestToolbox_DOT(t *testing.T) {
	tb := configuredToolbox(t, toolboxYAML)
	out, err := tb.DOT("test")
	require.NoError(t, err)

	ast, err := gographviz.ParseString(out)
	require.NoError(t, err, out)
	g := gographviz.NewGraph()
	require.NoError(t, gographviz.Analyse(ast, g))

	assert.True(t, g.Directed)
	assert.Len(t, g.Nodes.Nodes, 5)
	assert.Len(t, g.Edges.Edges, 2)
	assert.Equal(t, "bold", g.Nodes.Lookup[`"a"`].Attrs["style"])
	assert.NotContains(t, g.Nodes.Lookup[`"out"`].Attrs, gographviz.Attr("style"))
	assert.Contains(t, out, "red")
}
