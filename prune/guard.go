package prune

import (
	"fmt"

	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/recovery"
)

// Class is a family of parts that pruning deletes as a unit.
type Class string

const (
	ClassSlide  Class = "slide"
	ClassNotes  Class = "notes"
	ClassLayout Class = "layout"
	ClassMaster Class = "master"
	ClassTheme  Class = "theme"
	ClassMedia  Class = "media"
)

// Classes lists every class in deletion order.
var Classes = []Class{ClassSlide, ClassNotes, ClassLayout, ClassMaster, ClassTheme, ClassMedia}

// DefaultMediaGuard is the largest fraction of media parts one pass may
// delete.
const DefaultMediaGuard = 0.80

type Config struct {
	// MediaGuard overrides DefaultMediaGuard when positive.
	MediaGuard float64

	// DisableGuard lets a pass delete any share of a class.
	DisableGuard bool

	// Recovery decides whether an unreadable relationship part aborts the
	// run. Nil skips the part.
	Recovery recovery.Strategy

	Logger observability.Logger
}

func (c Config) withDefaults() Config {
	if c.MediaGuard <= 0 {
		c.MediaGuard = DefaultMediaGuard
	}
	c.Logger = observability.OrNop(c.Logger)
	return c
}

// SafetyAbortWarning records a deletion step that was skipped because it
// would have removed every part of a class, or more media than the guard
// fraction allows. It is reported, never returned as a failure.
type SafetyAbortWarning struct {
	Class  Class
	Unused int
	Total  int
}

func (w *SafetyAbortWarning) Error() string {
	return fmt.Sprintf("prune: refusing to delete %d of %d %s parts", w.Unused, w.Total, w.Class)
}

// guard returns a warning when deleting unused of total parts of class
// looks like a detection failure rather than real garbage. Notes slides
// follow their slides and are never guarded.
func (c Config) guard(class Class, unused, total int) *SafetyAbortWarning {
	if c.DisableGuard || class == ClassNotes || total == 0 || unused == 0 {
		return nil
	}
	w := &SafetyAbortWarning{Class: class, Unused: unused, Total: total}
	if unused >= total {
		return w
	}
	if class == ClassMedia && float64(unused)/float64(total) > c.MediaGuard {
		return w
	}
	return nil
}
