// Package parset reads observation parameter sets ("parsets") from disk as
// opaque key/value descriptors.
package parset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lofar-msss/obsdb/internal/descriptor"
)

// Ext is the file extension of parameter set files.
const Ext = ".parset"

// Source lists and reads parset files below a root directory.
type Source struct {
	root string
	// KeepDuplicates keeps every file when the same basename appears in
	// several directories. By default only the first one found is kept.
	KeepDuplicates bool
}

// NewSource returns a Source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{root: dir}
}

// List walks the root and returns the paths of all parset files in lexical
// order.
func (s *Source) List(ctx context.Context) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != Ext {
			return nil
		}
		if !s.KeepDuplicates {
			if seen[d.Name()] {
				return nil
			}
			seen[d.Name()] = true
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return paths, nil
}

// Load reads the given parset files. Files that cannot be read are reported
// in the error slice and left out of the result.
func (s *Source) Load(ctx context.Context, ids []string) ([]descriptor.Raw, []error) {
	raws := make([]descriptor.Raw, 0, len(ids))
	var errs []error

	for i, path := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		m, err := ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		raws = append(raws, m)
		if (i+1)%1000 == 0 {
			log.Printf("Read %d/%d parsets", i+1, len(ids))
		}
	}
	return raws, errs
}

// LoadAll lists and reads every parset below the root.
func (s *Source) LoadAll(ctx context.Context) ([]descriptor.Raw, []error) {
	paths, err := s.List(ctx)
	if err != nil {
		return nil, []error{err}
	}
	log.Printf("Found %d parsets under %s", len(paths), s.root)
	return s.Load(ctx, paths)
}

// ObsID derives the observation id from a parset file name.
func ObsID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

// ReadFile reads one parset file.
func ReadFile(path string) (descriptor.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return descriptor.Map{}, fmt.Errorf("open parset: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	m, err := Read(ObsID(path), f)
	if err != nil {
		return descriptor.Map{}, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

// Read parses "key = value" lines. Blank lines and lines starting with '#'
// are skipped; values keep their content verbatim apart from surrounding
// whitespace and matching quotes. A repeated key keeps its last value.
func Read(name string, r io.Reader) (descriptor.Map, error) {
	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return descriptor.Map{}, fmt.Errorf("line %d: missing '='", line)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return descriptor.Map{}, fmt.Errorf("line %d: empty key", line)
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return descriptor.Map{}, err
	}
	return descriptor.Map{Name: name, Values: values}, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
