package rtdata

import "errors"

var (
	// ErrInvalidGeometry marks malformed mesh data. Fatal to that
	// geometry's registration until new data arrives.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrDuplicateIdentity marks a key already in use by a different payload.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrSingularTransform marks a non-invertible local-to-world matrix.
	// The instance stays out of the TLAS until a valid transform arrives.
	ErrSingularTransform = errors.New("singular transform")

	// ErrInvalidLight marks light parameters with NaN or infinite fields.
	// The light keeps its last valid parameters.
	ErrInvalidLight = errors.New("invalid light")

	// ErrUploadRejected marks a command the upload channel refused. The
	// record is rolled back and retried on the next frame.
	ErrUploadRejected = errors.New("upload rejected")
)
