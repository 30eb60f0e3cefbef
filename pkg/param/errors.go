package param

import (
	"errors"
	"fmt"
)

// ConfigError reports a problem with one entry of the configuration tree.
type ConfigError struct {
	Path string // location in the tree, e.g. "connections[2].slot"
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	var prefix string
	if e.Path != "" {
		prefix = fmt.Sprintf("config %q: ", e.Path)
	} else {
		prefix = "config: "
	}
	if e.Err != nil {
		return prefix + e.Msg + ": " + e.Err.Error()
	}
	return prefix + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Errorf returns a ConfigError for path.
func Errorf(path, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a ConfigError for path with err as its cause.
func Wrap(path string, err error, msg string) *ConfigError {
	return &ConfigError{Path: path, Msg: msg, Err: err}
}

// IsConfigError reports whether err has a ConfigError in its chain.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
