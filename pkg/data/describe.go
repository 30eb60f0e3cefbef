package data

import (
	"fmt"
	"strings"
)

// Describe renders the structure of f: counter, last-data flag, payload
// types, and cuts.
func Describe(f *Frame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame #%d", f.Counter)
	if f.LastData {
		sb.WriteString(" (last)")
	}
	sb.WriteString("\n  payloads:")
	if f.Empty() {
		sb.WriteString(" none")
	}
	for _, t := range f.Types() {
		fmt.Fprintf(&sb, "\n    - %s", t)
	}
	if f.cuts.Len() > 0 {
		fmt.Fprintf(&sb, "\n  cuts: %s", f.cuts.String())
	}
	sb.WriteString("\n")
	return sb.String()
}
