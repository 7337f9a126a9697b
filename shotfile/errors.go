package shotfile

import "errors"

// Sentinel errors for the accessor layer. Callers match with errors.Is;
// the wrapped message always names the offending path segment.
//
// Three distinct outcomes are kept apart by design:
//   - precondition violations (a required group, dataset or attribute is
//     missing, or a name already exists) surface one of the sentinels
//     below;
//   - optional-structure absence (no traces group, no per-group globals)
//     is not an error at all - the accessor layers above return an empty
//     value;
//   - invalid caller input is rejected before any file or network I/O.
var (
	// ErrNotFound reports a missing node of unspecified kind.
	ErrNotFound = errors.New("not found")

	// ErrGroupNotFound reports a missing required group.
	ErrGroupNotFound = errors.New("group not found")

	// ErrDatasetNotFound reports a missing required dataset.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrAttrNotFound reports a missing required attribute.
	ErrAttrNotFound = errors.New("attribute not found")

	// ErrExists reports a write that would clobber an existing name
	// without an explicit overwrite request. Nothing is written.
	ErrExists = errors.New("already exists")

	// ErrReadOnly reports a mutation attempted through a read session
	// or a read-only Run.
	ErrReadOnly = errors.New("read-only")

	// ErrDriverReadOnly reports a mutation on a container format whose
	// driver cannot write it.
	ErrDriverReadOnly = errors.New("driver is read-only")

	// ErrUnsupported reports an operation deliberately left
	// unimplemented.
	ErrUnsupported = errors.New("operation not supported")

	// ErrUnknownExtension reports a file extension with no registered
	// driver mapping.
	ErrUnknownExtension = errors.New("no driver for file extension")

	// ErrNoDriver reports a driver name that was never registered.
	ErrNoDriver = errors.New("unknown shotfile driver")

	// ErrBadValue reports an attribute or dataset value of a type the
	// container cannot store.
	ErrBadValue = errors.New("unsupported value type")
)
