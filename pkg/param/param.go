// Package param is the read-only configuration tree consumed by Configure
// methods: ordered nodes, arrays, and scalar values, each remembering the path
// it was read from so that configuration errors can point at the offending
// entry.
package param

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant of a Param.
type Kind int

const (
	KindValue Kind = iota
	KindArray
	KindNode
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindArray:
		return "array"
	case KindNode:
		return "node"
	default:
		return "unknown"
	}
}

// Param is one element of the configuration tree.
type Param interface {
	Kind() Kind
	Path() string
}

// ─── Node ─────────────────────────────────────────────────────────────────────

// Node is an ordered string-keyed map of Params.
type Node struct {
	path     string
	keys     []string
	children map[string]Param
}

// NewNode returns an empty root node.
func NewNode() *Node {
	return newNode("")
}

func newNode(path string) *Node {
	return &Node{path: path, children: make(map[string]Param)}
}

func (n *Node) Kind() Kind { return KindNode }
func (n *Node) Path() string { return n.path }
func (n *Node) Len() int { return len(n.keys) }
func (n *Node) Empty() bool { return len(n.keys) == 0 }
func (n *Node) Keys() []string { return append([]string(nil), n.keys...) }

// Has reports whether key is present.
func (n *Node) Has(key string) bool {
	if n == nil {
		return false
	}
	_, ok := n.children[key]
	return ok
}

// Get returns the child at key, or nil.
func (n *Node) Get(key string) Param {
	if n == nil {
		return nil
	}
	return n.children[key]
}

// Set stores v under key, converting plain Go values (maps, slices, scalars)
// into Params. Existing keys keep their position.
func (n *Node) Set(key string, v any) {
	p := From(childPath(n.path, key), v)
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = p
}

// Node returns the child node at key.
func (n *Node) Node(key string) (*Node, error) {
	p, err := n.require(key)
	if err != nil {
		return nil, err
	}
	child, ok := p.(*Node)
	if !ok {
		return nil, Errorf(p.Path(), "expected a node, found %s", p.Kind())
	}
	return child, nil
}

// Array returns the child array at key.
func (n *Node) Array(key string) (*Array, error) {
	p, err := n.require(key)
	if err != nil {
		return nil, err
	}
	child, ok := p.(*Array)
	if !ok {
		return nil, Errorf(p.Path(), "expected an array, found %s", p.Kind())
	}
	return child, nil
}

// Value returns the scalar at key.
func (n *Node) Value(key string) (*Value, error) {
	p, err := n.require(key)
	if err != nil {
		return nil, err
	}
	child, ok := p.(*Value)
	if !ok {
		return nil, Errorf(p.Path(), "expected a value, found %s", p.Kind())
	}
	return child, nil
}

func (n *Node) require(key string) (Param, error) {
	if n == nil {
		return nil, Errorf(key, "missing required key")
	}
	p, ok := n.children[key]
	if !ok {
		return nil, Errorf(childPath(n.path, key), "missing required key")
	}
	return p, nil
}

// String returns the string at key, or def when absent.
func (n *Node) String(key, def string) (string, error) {
	if !n.Has(key) {
		return def, nil
	}
	v, err := n.Value(key)
	if err != nil {
		return def, err
	}
	return v.AsString()
}

// Int returns the integer at key, or def when absent.
func (n *Node) Int(key string, def int) (int, error) {
	if !n.Has(key) {
		return def, nil
	}
	v, err := n.Value(key)
	if err != nil {
		return def, err
	}
	return v.AsInt()
}

// Uint returns the non-negative integer at key, or def when absent.
func (n *Node) Uint(key string, def uint) (uint, error) {
	if !n.Has(key) {
		return def, nil
	}
	v, err := n.Value(key)
	if err != nil {
		return def, err
	}
	return v.AsUint()
}

// Bool returns the boolean at key, or def when absent.
func (n *Node) Bool(key string, def bool) (bool, error) {
	if !n.Has(key) {
		return def, nil
	}
	v, err := n.Value(key)
	if err != nil {
		return def, err
	}
	return v.AsBool()
}

// Float returns the number at key, or def when absent.
func (n *Node) Float(key string, def float64) (float64, error) {
	if !n.Has(key) {
		return def, nil
	}
	v, err := n.Value(key)
	if err != nil {
		return def, err
	}
	return v.AsFloat()
}

// Duration reads key as a Go duration string ("250ms"), or def when absent.
func (n *Node) Duration(key string, def time.Duration) (time.Duration, error) {
	if !n.Has(key) {
		return def, nil
	}
	s, err := n.String(key, "")
	if err != nil {
		return def, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, Wrap(childPath(n.path, key), err, "invalid duration")
	}
	return d, nil
}

// ─── Array ────────────────────────────────────────────────────────────────────

// Array is an ordered list of Params.
type Array struct {
	path  string
	items []Param
}

func (a *Array) Kind() Kind { return KindArray }
func (a *Array) Path() string { return a.path }

// Len returns the number of items; a nil array is empty.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// At returns item i.
func (a *Array) At(i int) Param { return a.items[i] }

// Items returns the items in order.
func (a *Array) Items() []Param {
	if a == nil {
		return nil
	}
	return append([]Param(nil), a.items...)
}

// ─── Value ────────────────────────────────────────────────────────────────────

// Value is a scalar: string, bool, int, float64, or nil.
type Value struct {
	path string
	raw  any
}

func (v *Value) Kind() Kind { return KindValue }
func (v *Value) Path() string { return v.path }
func (v *Value) Raw() any { return v.raw }
func (v *Value) IsNull() bool { return v.raw == nil }

// String renders the scalar.
func (v *Value) String() string {
	if v.raw == nil {
		return ""
	}
	return fmt.Sprint(v.raw)
}

// AsString returns the scalar as a string. Numbers and booleans are
// formatted; null is rejected.
func (v *Value) AsString() (string, error) {
	switch x := v.raw.(type) {
	case string:
		return x, nil
	case nil:
		return "", Errorf(v.path, "expected a string, found null")
	default:
		return fmt.Sprint(x), nil
	}
}

// AsInt returns the scalar as an int.
func (v *Value) AsInt() (int, error) {
	switch x := v.raw.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, Errorf(v.path, "expected an integer, found %v", x)
		}
		return int(x), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, Wrap(v.path, err, "expected an integer")
		}
		return i, nil
	default:
		return 0, Errorf(v.path, "expected an integer, found %T", v.raw)
	}
}

// AsUint returns the scalar as a non-negative integer.
func (v *Value) AsUint() (uint, error) {
	i, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, Errorf(v.path, "expected a non-negative integer, found %d", i)
	}
	return uint(i), nil
}

// AsBool returns the scalar as a boolean.
func (v *Value) AsBool() (bool, error) {
	switch x := v.raw.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, Wrap(v.path, err, "expected a boolean")
		}
		return b, nil
	case int:
		return x != 0, nil
	default:
		return false, Errorf(v.path, "expected a boolean, found %T", v.raw)
	}
}

// AsFloat returns the scalar as a float64.
func (v *Value) AsFloat() (float64, error) {
	switch x := v.raw.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, Wrap(v.path, err, "expected a number")
		}
		return f, nil
	default:
		return 0, Errorf(v.path, "expected a number, found %T", v.raw)
	}
}

// ─── construction from Go values ──────────────────────────────────────────────

// From converts a plain Go value into a Param rooted at path. Maps become
// nodes (keys sorted), slices become arrays, and anything else a Value.
// Params are returned unchanged.
func From(path string, v any) Param {
	switch x := v.(type) {
	case Param:
		return x
	case map[string]any:
		n := newNode(path)
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Set(k, x[k])
		}
		return n
	case []any:
		a := &Array{path: path}
		for i, item := range x {
			a.items = append(a.items, From(indexPath(path, i), item))
		}
		return a
	case []string:
		a := &Array{path: path}
		for i, item := range x {
			a.items = append(a.items, &Value{path: indexPath(path, i), raw: item})
		}
		return a
	case uint:
		return &Value{path: path, raw: int(x)}
	case int64:
		return &Value{path: path, raw: int(x)}
	case float32:
		return &Value{path: path, raw: float64(x)}
	default:
		return &Value{path: path, raw: v}
	}
}

// FromMap builds a root node from m.
func FromMap(m map[string]any) *Node {
	return From("", m).(*Node)
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
