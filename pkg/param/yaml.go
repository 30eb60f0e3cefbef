package param

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML document into a root node. Mapping key order is
// preserved. An empty document yields an empty node.
func ParseYAML(src []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewNode(), nil
	}
	p, err := fromYAML("", doc.Content[0])
	if err != nil {
		return nil, err
	}
	root, ok := p.(*Node)
	if !ok {
		return nil, Errorf("", "top level of the configuration must be a mapping, found %s", p.Kind())
	}
	return root, nil
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	root, err := ParseYAML(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

func fromYAML(path string, y *yaml.Node) (Param, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return NewNode(), nil
		}
		return fromYAML(path, y.Content[0])
	case yaml.AliasNode:
		return fromYAML(path, y.Alias)
	case yaml.MappingNode:
		n := newNode(path)
		for i := 0; i+1 < len(y.Content); i += 2 {
			key := y.Content[i].Value
			child, err := fromYAML(childPath(path, key), y.Content[i+1])
			if err != nil {
				return nil, err
			}
			if _, dup := n.children[key]; !dup {
				n.keys = append(n.keys, key)
			}
			n.children[key] = child
		}
		return n, nil
	case yaml.SequenceNode:
		a := &Array{path: path}
		for i, item := range y.Content {
			child, err := fromYAML(indexPath(path, i), item)
			if err != nil {
				return nil, err
			}
			a.items = append(a.items, child)
		}
		return a, nil
	case yaml.ScalarNode:
		var raw any
		if err := y.Decode(&raw); err != nil {
			return nil, Wrap(path, err, fmt.Sprintf("line %d: bad scalar", y.Line))
		}
		return &Value{path: path, raw: normalize(raw)}, nil
	default:
		return nil, Errorf(path, "unsupported yaml node kind %d", y.Kind)
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case uint64:
		return int(x)
	default:
		return v
	}
}
