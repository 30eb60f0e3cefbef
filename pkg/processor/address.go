package processor

import (
	"fmt"
	"strings"
)

// AddressSeparator splits "processor:signal" and "processor:slot" addresses.
const AddressSeparator = ':'

// ParseAddress splits addr on the first separator into a processor name and a
// signal or slot name. Both parts must be non-empty.
func ParseAddress(addr string) (proc, name string, err error) {
	i := strings.IndexByte(addr, AddressSeparator)
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q has no %q", ErrBadAddress, addr, AddressSeparator)
	}
	proc, name = addr[:i], addr[i+1:]
	if proc == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadAddress, addr)
	}
	return proc, name, nil
}
