package workout

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// FileType is the validated tracking file type. Free-form type strings
// from the upload boundary are narrowed to this enum before ingestion
// dispatches on them.
type FileType string

const (
	FileTypeFIT FileType = "fit"
	FileTypeGPX FileType = "gpx"
)

var ErrUnknownFileType = errors.New("unknown tracking file type")

// ParseFileType validates a caller-declared type tag.
func ParseFileType(s string) (FileType, error) {
	switch FileType(strings.ToLower(s)) {
	case FileTypeFIT:
		return FileTypeFIT, nil
	case FileTypeGPX:
		return FileTypeGPX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFileType, s)
}

// DetectFileType sniffs the type from file contents: the ".FIT" tag at
// offset 8 of the container header, or a gpx root element for XML.
func DetectFileType(data []byte) (FileType, error) {
	if len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT")) {
		return FileTypeFIT, nil
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<gpx")) ||
		bytes.Contains(head, []byte("topografix.com/GPX")) {
		return FileTypeGPX, nil
	}

	return "", ErrUnknownFileType
}
