package pipeline

import "time"

// Stage identifies a step of a run in progress events.
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageMedia    Stage = "media-compression"
	StageFinalize Stage = "finalize"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// Event is one progress notification. Percent never decreases within a
// run.
type Event struct {
	RunID   string
	Stage   Stage
	Percent int
	Message string

	// Current, Total and Files are set for media-compression events.
	Current int
	Total   int
	Files   []string

	Stats *Stats // complete only
	Err   string // error only
}

// Stats summarizes a finished run.
type Stats struct {
	OriginalSize   int64
	CompressedSize int64
	MediaFound     int
	MediaSaved     int64
	Elapsed        time.Duration
}

// Saved returns how many bytes the run removed from the package.
func (s Stats) Saved() int64 { return s.OriginalSize - s.CompressedSize }

type emitter struct {
	runID string
	fn    func(Event)
	last  int
}

func (e *emitter) emit(ev Event) {
	ev.RunID = e.runID
	if ev.Stage == StageError || ev.Percent < e.last {
		ev.Percent = e.last
	}
	e.last = ev.Percent
	if e.fn != nil {
		e.fn(ev)
	}
}

// Fixed progress points; media compression fills the range between
// percentPruned and percentMediaDone.
const (
	percentValidated = 5
	percentHidden    = 10
	percentPruned    = 20
	percentMediaDone = 90
	percentFinalize  = 95
	percentComplete  = 100
)
