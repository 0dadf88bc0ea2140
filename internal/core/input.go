package core

import "time"

// Input is the fingerprint of one declared dependency.
//
// Sequencing inputs run to gigabytes, so identity comes from metadata rather
// than content: size and modification time for files, and the sorted listing
// of the files directly inside a directory.
type Input struct {
	// Path is the cleaned, slash-separated dependency path.
	Path string

	IsDir   bool
	Size    int64
	ModTime time.Time

	// Entries is the sorted listing of a directory dependency, one
	// "name size mtime" line per file. Subdirectories are not listed. Nil
	// for files.
	Entries []string
}

// InputSet is the complete set of fingerprints for a task, sorted by Path.
type InputSet struct {
	Inputs []Input
}
