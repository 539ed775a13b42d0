// Package archive holds a package's ZIP file table in memory as an ordered
// mapping from normalized path to payload.
package archive

import (
	"iter"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Reader is the read side shared by Archive and Tx.
type Reader interface {
	Get(name string) ([]byte, bool)
	Has(name string) bool
	List(pred Predicate) iter.Seq[string]
}

// Store is a mutable Reader.
type Store interface {
	Reader
	Set(name string, data []byte)
	Remove(name string)
}

// Archive is not safe for concurrent mutation. Mutations during a run go
// through a Tx so the Archive itself only changes on Commit.
type Archive struct {
	order    []string
	files    map[string][]byte
	modified map[string]time.Time
}

func New() *Archive {
	return &Archive{
		files:    make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

// Normalize converts name to the canonical key form: forward slashes, no
// leading or trailing slash, no dot segments.
func Normalize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Trim(name, "/")
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	return strings.TrimPrefix(name, "/")
}

func (a *Archive) Get(name string) ([]byte, bool) {
	data, ok := a.files[Normalize(name)]
	return data, ok
}

func (a *Archive) Has(name string) bool {
	_, ok := a.files[Normalize(name)]
	return ok
}

// Set creates or overwrites name. The archive keeps data without copying it.
func (a *Archive) Set(name string, data []byte) {
	name = Normalize(name)
	if name == "" {
		return
	}
	if _, ok := a.files[name]; !ok {
		a.order = append(a.order, name)
	}
	a.files[name] = data
}

// Remove deletes name; it is a no-op when name is absent.
func (a *Archive) Remove(name string) {
	name = Normalize(name)
	if _, ok := a.files[name]; !ok {
		return
	}
	delete(a.files, name)
	delete(a.modified, name)
	if i := slices.Index(a.order, name); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}
}

// List yields the names matching pred in insertion order. It iterates over a
// snapshot, so the caller may mutate the archive while ranging.
func (a *Archive) List(pred Predicate) iter.Seq[string] {
	names := slices.Clone(a.order)
	return func(yield func(string) bool) {
		for _, name := range names {
			if pred != nil && !pred(name) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// Paths collects List into a slice.
func Paths(r Reader, pred Predicate) []string {
	return slices.Collect(r.List(pred))
}

func (a *Archive) Len() int { return len(a.files) }

// Size returns the sum of all uncompressed payload sizes.
func (a *Archive) Size() int64 {
	var n int64
	for _, data := range a.files {
		n += int64(len(data))
	}
	return n
}

// Clone returns a shallow copy; payload slices are shared.
func (a *Archive) Clone() *Archive {
	c := New()
	c.order = slices.Clone(a.order)
	for k, v := range a.files {
		c.files[k] = v
	}
	for k, v := range a.modified {
		c.modified[k] = v
	}
	return c
}

// Predicate selects archive paths.
type Predicate func(name string) bool

func HasPrefix(prefix string) Predicate {
	return func(name string) bool { return strings.HasPrefix(name, prefix) }
}

func HasSuffix(suffix string) Predicate {
	return func(name string) bool { return strings.HasSuffix(name, suffix) }
}

func Match(re *regexp.Regexp) Predicate {
	return re.MatchString
}

// InDir matches direct children of dir, not deeper descendants.
func InDir(dir string) Predicate {
	dir = strings.TrimSuffix(Normalize(dir), "/") + "/"
	return func(name string) bool {
		rest, ok := strings.CutPrefix(name, dir)
		return ok && rest != "" && !strings.Contains(rest, "/")
	}
}

func And(preds ...Predicate) Predicate {
	return func(name string) bool {
		for _, p := range preds {
			if !p(name) {
				return false
			}
		}
		return true
	}
}

func Not(p Predicate) Predicate {
	return func(name string) bool { return !p(name) }
}
