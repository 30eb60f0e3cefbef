package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/run"
)

// promptBreak returns a break handler that shows the paused value on out and
// reads a command from in: c to continue, q to cancel the run. At end of
// input every later breakpoint is continued. The handler returns without
// continuing when ctx is done or the run is canceled while it waits for input.
func promptBreak(in io.Reader, out io.Writer) run.BreakHandler {
	lines := make(chan string)
	var start sync.Once
	eof := false
	return func(ctx context.Context, s *run.SingleRunController) {
		start.Do(func() { go readLines(in, lines) })
		for {
			if eof {
				s.Continue()
				return
			}
			fmt.Fprintf(out, "\n[breakpoint] run paused\n")
			if ret, ok := s.Return(); ok {
				fmt.Fprintf(out, "  value: %s\n", describeReturn(ret))
			}
			fmt.Fprint(out, "[c]ontinue or [q]uit > ")

			var line string
			var ok bool
			select {
			case line, ok = <-lines:
			case <-ctx.Done():
				fmt.Fprintln(out, "\n[breakpoint] interrupted")
				return
			case <-s.Done():
				return
			}
			if !ok {
				eof = true
				fmt.Fprintln(out, "\n[breakpoint] end of input, continuing")
				continue
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "", "c", "continue":
				s.Continue()
				return
			case "q", "quit":
				s.Cancel(control.ExitError)
				return
			default:
				fmt.Fprintln(out, "unknown command")
			}
		}
	}
}

// readLines sends each line of in to lines and closes it at end of input.
func readLines(in io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

// describeReturn renders the value behind a breakpoint's return pointer.
func describeReturn(ret any) string {
	if f, ok := ret.(*data.Handle); ok && *f != nil {
		return strings.TrimSpace(data.Describe(*f))
	}
	v := reflect.ValueOf(ret)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		return fmt.Sprintf("%+v", v.Elem().Interface())
	}
	return fmt.Sprintf("%+v", ret)
}
