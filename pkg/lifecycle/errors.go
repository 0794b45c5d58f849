package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoActiveExtension = errors.New("no active extension")
	ErrReservedExtension = errors.New("extension is reserved")
	ErrInvalidInput      = errors.New("invalid input")
)

// Kind classifies a lifecycle failure.
type Kind int

const (
	KindDiscovery Kind = iota + 1
	KindConstruction
	KindRender
	KindValidation
	KindPersistence
	KindHook
	KindNoActive
)

func (k Kind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery failure"
	case KindConstruction:
		return "construction failure"
	case KindRender:
		return "render failure"
	case KindValidation:
		return "invalid input"
	case KindPersistence:
		return "config persistence failure"
	case KindHook:
		return "extension hook failure"
	case KindNoActive:
		return "no active extension"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Coordinator operation that fails.
type Error struct {
	Kind     Kind
	Op       string
	SourceID string
	Details  []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.SourceID != "" {
		b.WriteString(" ")
		b.WriteString(e.SourceID)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 when err is not a lifecycle error.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return 0
}
