package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every *InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("invalid rule set configuration")
)

// InputError reports input the engine cannot score, such as a malformed URL.
type InputError struct {
	Kind   Kind
	Input  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("invalid %s input %q: %s", e.Kind, e.Input, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// ConfigError reports a malformed rule set. It is returned at load time only.
type ConfigError struct {
	RuleSet string
	RuleID  string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	var msg string
	if e.RuleID != "" {
		msg = fmt.Sprintf("rule set %q rule %q: %s", e.RuleSet, e.RuleID, e.Reason)
	} else {
		msg = fmt.Sprintf("rule set %q: %s", e.RuleSet, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
