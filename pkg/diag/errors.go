package diag

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("diag: invalid configuration")
	// ErrUnknownKey matches every *UnknownKeyError.
	ErrUnknownKey = errors.New("diag: unknown key")
	// ErrInstalled indicates a second attempt to install the process registry.
	ErrInstalled = errors.New("diag: registry already installed")
)

// ConfigError reports a malformed default table or override. It is fatal
// at startup.
type ConfigError struct {
	Key    Key    // offending key, if any
	Reason string // what is wrong
	Err    error  // underlying cause, if any
}

func (e *ConfigError) Error() string {
	msg := "diag: config: " + e.Reason
	if e.Key != "" {
		msg = fmt.Sprintf("diag: config: %s %q", e.Reason, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.Err }

// UnknownKeyError reports a query for a key that is not registered.
type UnknownKeyError struct {
	Key Key
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("diag: unknown key %q", e.Key)
}

func (e *UnknownKeyError) Is(target error) bool { return target == ErrUnknownKey }
