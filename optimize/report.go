package optimize

// FileResult is the outcome for one media part.
type FileResult struct {
	Part    string
	NewPart string // set when the payload was replaced; differs from Part after a rename

	Format string // detected from the payload
	Chosen string // format written, empty when the original was kept
	Class  Class

	Width, Height int

	OriginalSize int
	NewSize      int

	Cached  bool
	Skipped string // "animated", "unsupported" or "no-saving"
	Err     error  // *CodecError

	data []byte
}

// Replaced reports whether the part received a new payload.
func (r FileResult) Replaced() bool { return r.NewPart != "" }

// Report summarizes a recompression run.
type Report struct {
	Files []FileResult

	Found      int
	Compressed int
	Failed     int
	CacheHits  int

	OriginalBytes int64
	SavedBytes    int64
}

func (r *Report) add(f FileResult) {
	r.Files = append(r.Files, f)
	r.OriginalBytes += int64(f.OriginalSize)
	if f.Cached {
		r.CacheHits++
	}
	switch {
	case f.Err != nil:
		r.Failed++
	case f.Replaced():
		r.Compressed++
		r.SavedBytes += int64(f.OriginalSize - f.NewSize)
	}
}

// Renamed maps old part names to new ones for every renamed part.
func (r *Report) Renamed() map[string]string {
	out := make(map[string]string)
	for _, f := range r.Files {
		if f.Replaced() && f.NewPart != f.Part {
			out[f.Part] = f.NewPart
		}
	}
	return out
}
