package optimize

import "fmt"

// CodecError reports an image that could not be decoded or re-encoded. The
// part is left unchanged.
type CodecError struct {
	Part string
	Op   string
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("optimize: %s %s: %v", e.Op, e.Part, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
