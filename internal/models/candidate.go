// This file defines the core data structures (models) for our application.
// These structs represent the install candidates resolved from package files
// in the import directory.

package models

import "time"

// InstallCandidate represents a single package file that resolved to a
// valid, installable title. It is immutable once produced by the resolver;
// the Selected flag is the only field the caller is expected to toggle.
type InstallCandidate struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	// Category is "Update", "DLC", or "" for raw archives accepted on trust.
	Category  string    `json:"category,omitempty"`
	Icon      string    `json:"icon,omitempty"` // base64 JPEG data URI
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
