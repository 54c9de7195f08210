package catalog

import "errors"

var (
	ErrSlugRequired     = errors.New("slug is required")
	ErrTitleRequired    = errors.New("title is required")
	ErrDuplicateChapter = errors.New("duplicate chapter slug within series")
	ErrUnsupportedFile  = errors.New("unsupported catalog file format")
)
