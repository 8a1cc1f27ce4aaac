// Package cfaerr defines the typed error taxonomy shared by every
// component of the store: the planner, the manifest, the resource
// manager and the backends all return one of these concrete types
// instead of ad-hoc fmt.Errorf values, so callers can type-switch or
// use errors.As to decide whether an operation is retryable.
package cfaerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the error handling
// design. It exists mainly for logging and metrics; callers should
// still prefer errors.As against the concrete types below.
type Kind string

const (
	KindConfig               Kind = "ConfigError"
	KindLocator              Kind = "LocatorError"
	KindBackendIO            Kind = "BackendIOError"
	KindBackendAuth          Kind = "BackendAuthError"
	KindUnknownFormat        Kind = "UnknownFormat"
	KindManifestParse        Kind = "ManifestParseError"
	KindNameCollision        Kind = "NameCollision"
	KindMissingEntity        Kind = "MissingEntity"
	KindIndexOutOfRange      Kind = "IndexOutOfRange"
	KindDimensionMismatch    Kind = "DimensionMismatch"
	KindUnsupportedOperation Kind = "UnsupportedOperation"
	KindOutOfFileHandles     Kind = "OutOfFileHandles"
	KindOutOfMemory          Kind = "OutOfMemory"
)

// Error is the common shape every taxonomy member embeds: a kind, the
// offending locator (when there is one) and, for partition-scoped
// failures, the partition index vector.
type Error struct {
	Kind           Kind
	Locator        string
	PartitionIndex []int
	Msg            string
	Err            error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	loc := e.Locator
	if loc == "" {
		loc = "<no locator>"
	}
	s := fmt.Sprintf("%s: %s: %s", e.Kind, loc, e.Msg)
	if len(e.PartitionIndex) > 0 {
		s = fmt.Sprintf("%s (partition %v)", s, e.PartitionIndex)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, locator, msg string, err error, partition []int) *Error {
	return &Error{Kind: kind, Locator: locator, Msg: msg, Err: err, PartitionIndex: partition}
}

// Config reports an invalid or unreadable configuration document.
func Config(locator, msg string, err error) *Error {
	return new_(KindConfig, locator, msg, err, nil)
}

// Locator reports a malformed or unresolvable dataset/subarray locator.
func Locator(locator, msg string) *Error {
	return new_(KindLocator, locator, msg, nil, nil)
}

// BackendIO reports a transport-level failure against a backend; these
// are the only kind the façade retries (once) before surfacing.
func BackendIO(locator, msg string, err error) *Error {
	return new_(KindBackendIO, locator, msg, err, nil)
}

// BackendAuth reports a credential or authorization failure; fatal,
// never retried.
func BackendAuth(locator, msg string, err error) *Error {
	return new_(KindBackendAuth, locator, msg, err, nil)
}

// UnknownFormat reports a container whose magic bytes match none of
// the recognised generations.
func UnknownFormat(locator string) *Error {
	return new_(KindUnknownFormat, locator, "unrecognized container format", nil, nil)
}

// ManifestParse reports a structurally invalid manifest (missing
// required key, malformed JSON, wrong array rank, ...).
func ManifestParse(locator, msg string, err error) *Error {
	return new_(KindManifestParse, locator, msg, err, nil)
}

// NameCollision reports a create/rename that collides with an
// existing group, dimension or variable name.
func NameCollision(locator, name string) *Error {
	return new_(KindNameCollision, locator, fmt.Sprintf("name already in use: %q", name), nil, nil)
}

// MissingEntity reports a lookup for a group/dimension/variable/
// partition that does not exist.
func MissingEntity(locator, name string) *Error {
	return new_(KindMissingEntity, locator, fmt.Sprintf("not found: %q", name), nil, nil)
}

// IndexOutOfRange reports a hyperslab whose bounds fall outside the
// master array shape.
func IndexOutOfRange(locator, msg string) *Error {
	return new_(KindIndexOutOfRange, locator, msg, nil, nil)
}

// DimensionMismatch reports a rank or shape disagreement between a
// variable and the buffer or dimensions presented to it.
func DimensionMismatch(locator, msg string) *Error {
	return new_(KindDimensionMismatch, locator, msg, nil, nil)
}

// UnsupportedOperation reports a request the store deliberately
// refuses (e.g. append on a remote locator, schema/container mismatch).
func UnsupportedOperation(locator, msg string) *Error {
	return new_(KindUnsupportedOperation, locator, msg, nil, nil)
}

// OutOfFileHandles reports resource-manager admission failure when no
// unlocked victim remains to evict.
func OutOfFileHandles(locator string) *Error {
	return new_(KindOutOfFileHandles, locator, "open file handle budget exhausted", nil, nil)
}

// OutOfMemory reports resource-manager admission failure on the
// memory budget, including the fatal single-subarray-too-large case.
func OutOfMemory(locator, msg string) *Error {
	return new_(KindOutOfMemory, locator, msg, nil, nil)
}

// WithPartition returns a copy of e annotated with a partition index,
// used when a generic error is promoted to a partition-scoped one.
func WithPartition(e *Error, index []int) *Error {
	cp := *e
	cp.PartitionIndex = index
	return &cp
}

// IsRetryable reports whether err (or something it wraps) is a
// BackendIOError, the only kind the façade retries before surfacing.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindBackendIO
}
