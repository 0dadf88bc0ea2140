package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// InputResolver fingerprints declared dependencies.
//
// Ordering is always explicit: paths are sorted and de-duplicated, directory
// listings are sorted by name. OS directory order never leaks into identity.
type InputResolver struct {
	// BaseDir resolves relative dependency paths. Empty means the process
	// working directory.
	BaseDir string
}

// NewInputResolver creates a new InputResolver with the given base directory.
func NewInputResolver(baseDir string) *InputResolver {
	return &InputResolver{BaseDir: baseDir}
}

// Resolve fingerprints every dependency.
//
// Returns an error wrapping ErrMissingDependency when a path does not exist.
func (r *InputResolver) Resolve(depends []string) (*InputSet, error) {
	if len(depends) == 0 {
		return &InputSet{Inputs: []Input{}}, nil
	}

	pathSet := make(map[string]struct{}, len(depends))
	for _, d := range depends {
		pathSet[filepath.ToSlash(filepath.Clean(d))] = struct{}{}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	inputs := make([]Input, 0, len(paths))
	for _, p := range paths {
		in, err := r.fingerprint(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return &InputSet{Inputs: inputs}, nil
}

// Missing returns the dependencies that do not exist, in declaration order.
func (r *InputResolver) Missing(depends []string) []string {
	var missing []string
	for _, d := range depends {
		if _, err := os.Stat(r.osPath(d)); err != nil {
			missing = append(missing, d)
		}
	}
	return missing
}

func (r *InputResolver) fingerprint(p string) (Input, error) {
	osPath := r.osPath(p)
	info, err := os.Stat(osPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Input{}, &TaskError{Kind: ErrMissingDependency, Msg: p}
		}
		return Input{}, fmt.Errorf("stat %q: %w", p, err)
	}

	in := Input{
		Path:    p,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}
	if !in.IsDir {
		return in, nil
	}

	// A directory is identified by the files directly inside it. Its own
	// mtime and its subdirectories are left out, so an output folder nested
	// in the input folder does not invalidate the tasks that read it.
	in.Size = 0
	in.ModTime = time.Time{}
	entries, err := os.ReadDir(osPath)
	if err != nil {
		return Input{}, fmt.Errorf("listing %q: %w", p, err)
	}
	in.Entries = make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ei, err := e.Info()
		if err != nil {
			return Input{}, fmt.Errorf("stat %q: %w", filepath.Join(p, e.Name()), err)
		}
		in.Entries = append(in.Entries, e.Name()+" "+strconv.FormatInt(ei.Size(), 10)+" "+strconv.FormatInt(ei.ModTime().UnixNano(), 10))
	}
	// ReadDir already sorts by name; keep it explicit.
	sort.Strings(in.Entries)
	return in, nil
}

func (r *InputResolver) osPath(p string) string {
	osPath := filepath.FromSlash(p)
	if r.BaseDir != "" && !filepath.IsAbs(osPath) {
		osPath = filepath.Join(r.BaseDir, osPath)
	}
	return osPath
}
