package molecule

import "errors"

// Sentinel errors returned by the Registry and Bulk Loader.  The application
// layer maps them onto pkg/errors codes.
var (
	ErrNotFound            = errors.New("molecule not found")
	ErrDuplicateIdentifier = errors.New("molecule identifier already exists")
	ErrEmptyIdentifier     = errors.New("molecule identifier must not be empty")
	ErrInvalidNotation     = errors.New("invalid SMILES notation")
	ErrInvalidFileFormat   = errors.New("invalid file format")
)
