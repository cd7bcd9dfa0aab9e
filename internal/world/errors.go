package world

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig is matched by every error returned while loading or building a
// world.
var ErrConfig = errors.New("invalid world configuration")

// ConfigError locates a problem in the world file. Index is -1 when the
// problem is not tied to one entry of a section.
type ConfigError struct {
	Section string
	Index   int
	Name    string
	Field   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("world")
	if e.Section != "" {
		b.WriteString(": ")
		b.WriteString(e.Section)
		if e.Index >= 0 {
			fmt.Fprintf(&b, "[%d]", e.Index)
		}
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Field != "" {
		b.WriteString(" ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both ErrConfig and the underlying cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}
