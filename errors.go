package replica

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnsupported indicates no adapter can reconstruct the value.
	ErrUnsupported = errors.New("unsupported type")

	// ErrDisallowed indicates a recognized kind that is never cloned.
	ErrDisallowed = errors.New("type not supported for cloning")

	// ErrAsyncOnly indicates a kind that only clones in async mode.
	ErrAsyncOnly = errors.New("type can only be cloned asynchronously")

	// ErrHook indicates a customizer or clone method failed.
	ErrHook = errors.New("extension hook failed")

	// ErrMalformedResult indicates a hook result violated its contract.
	ErrMalformedResult = errors.New("malformed extension result")

	// ErrAsyncRejected indicates an awaited duplication failed.
	ErrAsyncRejected = errors.New("async clone rejected")

	// ErrMisuse indicates a caller contract violation.
	ErrMisuse = errors.New("misuse")

	// ErrNotExtensible indicates a new property on a non-extensible object.
	ErrNotExtensible = errors.New("object is not extensible")

	// ErrNonConfigurable indicates an incompatible change to a non-configurable property.
	ErrNonConfigurable = errors.New("property is not configurable")

	// ErrNotWritable indicates an assignment to a read-only property.
	ErrNotWritable = errors.New("property is not writable")

	// ErrNotCallable indicates a call on a non-callable object.
	ErrNotCallable = errors.New("object is not callable")

	// ErrCyclicPrototype indicates a prototype link that would form a cycle.
	ErrCyclicPrototype = errors.New("cyclic prototype chain")

	// ErrInvalidSnapshot indicates a snapshot document that cannot be restored.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrNotSerializable indicates a value kind snapshots cannot carry.
	ErrNotSerializable = errors.New("value not serializable")
)

// HookError represents a failure inside a customizer or clone method.
// It wraps ErrHook with the hook name, the tag of the value and the cause.
type HookError struct {
	Hook  string // "customizer" or "clone method"
	Tag   Tag    // Classification of the value being cloned
	Cause error  // Error returned or panic recovered from the hook
}

func (e *HookError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed on %s: %v", e.Hook, e.Tag, e.Cause)
	}
	return fmt.Sprintf("%s failed on %s", e.Hook, e.Tag)
}

func (e *HookError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrHook}
	}
	return []error{ErrHook, e.Cause}
}

// KindError represents a node-local reconstruction failure.
type KindError struct {
	Err   error // Underlying sentinel error (ErrUnsupported, ErrDisallowed, ...)
	Tag   Tag   // Classification of the value
	Cause error // Original error from the adapter, if any
}

func (e *KindError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Err.Error(), e.Tag, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.Tag)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// PropertyError represents a rejected property operation.
type PropertyError struct {
	Err error // Underlying sentinel error (ErrNotWritable, ...)
	Key Key   // Key that was rejected
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s (property %s)", e.Err.Error(), e.Key)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

// SnapshotError represents a snapshot or restore failure at a node.
type SnapshotError struct {
	Err   error  // Underlying sentinel error (ErrNotSerializable, ErrInvalidSnapshot)
	Node  int    // Node index, -1 when not applicable
	Cause string // Human readable detail
}

func (e *SnapshotError) Error() string {
	if e.Node >= 0 {
		return fmt.Sprintf("%s at node %d: %s", e.Err.Error(), e.Node, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Cause)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// newKindError creates a KindError for a node-local failure.
func newKindError(sentinel error, tag Tag, cause error) error {
	return &KindError{
		Err:   sentinel,
		Tag:   tag,
		Cause: cause,
	}
}

// newHookError creates a HookError for a failed extension hook.
func newHookError(hook string, tag Tag, cause error) error {
	return &HookError{
		Hook:  hook,
		Tag:   tag,
		Cause: cause,
	}
}

// newSnapshotError creates a SnapshotError.
func newSnapshotError(sentinel error, node int, format string, args ...any) error {
	return &SnapshotError{
		Err:   sentinel,
		Node:  node,
		Cause: fmt.Sprintf(format, args...),
	}
}
