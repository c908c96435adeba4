package filegate

import "errors"

// Gateway error kinds. Validation failures never reveal whether a file
// with the offending name exists.
var (
	ErrInvalidFileType     = errors.New("invalid file type")
	ErrInvalidResourceName = errors.New("invalid resource name")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileTooLarge        = errors.New("file too large")
)
