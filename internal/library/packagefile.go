// This file classifies files found in the import directory: which ones are
// package files worth resolving, and which ones are compressed archives the
// user must extract first.

package library

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/mholt/archives"
)

// packageSuffixes are the recognized package file suffixes. Matching is
// case-insensitive and deliberately dotless, so "game.nsp" and "gamensp"
// both qualify, matching the resolver's dispatch.
var packageSuffixes = []string{"nca", "xci", "nsp"}

// archiveSuffixes are the compressed container suffixes titles are commonly
// distributed in. Files with these names are never resolved; they are
// listed to see whether a package file is trapped inside.
var archiveSuffixes = []string{".zip", ".7z", ".rar", ".tar.gz"}

// errFoundPackage stops an archive listing as soon as one entry matches.
var errFoundPackage = errors.New("package entry found")

// IsSupportedPackage reports whether a file name looks like an installable
// package file.
func IsSupportedPackage(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range packageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// IsCompressedArchiveName reports whether a file name looks like a
// compressed container rather than a package file.
func IsCompressedArchiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// IsCompressedArchive reports whether the file at path is a general-purpose
// compressed archive (zip, 7z, rar, tarballs), regardless of its name.
// Package files that fail to decode are sniffed with this to give the user
// an actionable message when someone renamed a zip to .nsp.
func IsCompressedArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	format, _, err := archives.Identify(context.Background(), path, f)
	if err != nil {
		// archives.NoMatch means it is not a general-purpose archive.
		return false
	}
	return format != nil
}

// ArchiveContainsPackage lists the entries of the compressed archive at
// path and reports whether any of them is a package file. Unreadable or
// unrecognized archives report false.
func ArchiveContainsPackage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	ctx := context.Background()
	format, input, err := archives.Identify(ctx, path, f)
	if err != nil {
		return false
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return false
	}

	found := false
	handler := func(ctx context.Context, entry archives.FileInfo) error {
		if !entry.IsDir() && IsSupportedPackage(entry.NameInArchive) {
			found = true
			return errFoundPackage
		}
		return nil
	}
	err = extractor.Extract(ctx, input, handler)
	if err != nil && !errors.Is(err, errFoundPackage) {
		return false
	}
	return found
}
