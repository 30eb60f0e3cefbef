package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

func graphCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <config.yaml>",
		Short: "Print the processors and connections of a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := buildFromFile(cmd, g, args[0])
			if err != nil {
				return err
			}
			tb := src.Toolbox()

			switch strings.ToLower(format) {
			case "dot":
				out, err := tb.DOT("nymph")
				if err != nil {
					return fmt.Errorf("render dot: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(tb))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// renderText produces the human-readable summary.
func renderText(tb *processor.Toolbox) string {
	var sb strings.Builder

	names := tb.ProcessorNames()
	conns := tb.Connections()
	fmt.Fprintf(&sb, "Processors: %d  Connections: %d\n", len(names), len(conns))

	maxName := 4
	for _, n := range names {
		maxName = max(maxName, len(n))
	}

	fmt.Fprintf(&sb, "\nProcessors:\n")
	for _, n := range names {
		p := tb.GetProcessor(n)
		_, primary := p.(processor.Primary)
		kind := ""
		if primary {
			kind = "primary"
		}
		fmt.Fprintf(&sb, "  %-*s  %-14s %-8s signals=%s slots=%s\n", maxName, n, tb.ProcessorType(n), kind,
			strings.Join(p.SignalNames(), ","), strings.Join(p.SlotNames(), ","))
	}

	fmt.Fprintf(&sb, "\nConnections:\n")
	maxSig := 6
	for _, c := range conns {
		maxSig = max(maxSig, len(c.Signal))
	}
	for _, c := range conns {
		var extra []string
		if c.Order != processor.NoOrder {
			extra = append(extra, fmt.Sprintf("order=%d", c.Order))
		}
		if c.Breakpoint {
			extra = append(extra, "breakpoint")
		}
		if len(extra) > 0 {
			fmt.Fprintf(&sb, "  %-*s  →  %s  [%s]\n", maxSig, c.Signal, c.Slot, strings.Join(extra, " "))
		} else {
			fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxSig, c.Signal, c.Slot)
		}
	}

	fmt.Fprintf(&sb, "\nRun queue: %s\n", tb.RunQueue())
	return sb.String()
}
