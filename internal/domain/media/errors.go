package media

import "errors"

var (
	ErrUnsupportedType = errors.New("only JPEG/PNG images and MP4/QuickTime videos can be attached")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrTooManyFiles    = errors.New("no more files can be attached to this record")
	ErrEmptyFile       = errors.New("file is empty")
)
