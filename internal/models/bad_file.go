// This file defines the data structure for tracking package files that
// failed to resolve into an install candidate.

package models

import "time"

// BadFile represents a package file in the import directory that could not
// be resolved.
type BadFile struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	FileName    string    `json:"file_name"`
	Error       string    `json:"error"`
	FileSize    int64     `json:"file_size"`
	DetectedAt  time.Time `json:"detected_at"`
	LastChecked time.Time `json:"last_checked"`
}

// BadFileError represents different categories of resolve failures.
type BadFileError string

const (
	ErrorIOError             BadFileError = "io_error"
	ErrorUnsupportedFormat   BadFileError = "unsupported_format"
	ErrorMalformedPartition  BadFileError = "malformed_partition"
	ErrorMissingMetadata     BadFileError = "missing_metadata"
	ErrorUnsupportedCategory BadFileError = "unsupported_category"
	ErrorCompressedPackage   BadFileError = "compressed_package"
)

// String returns the human-readable error description.
func (e BadFileError) String() string {
	switch e {
	case ErrorIOError:
		return "I/O Error"
	case ErrorUnsupportedFormat:
		return "Unsupported Format"
	case ErrorMalformedPartition:
		return "Malformed Partition"
	case ErrorMissingMetadata:
		return "Missing Metadata"
	case ErrorUnsupportedCategory:
		return "Unsupported Title Category"
	case ErrorCompressedPackage:
		return "Compressed Package (extract before importing)"
	default:
		return "Unknown Error"
	}
}
