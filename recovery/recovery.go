package recovery

// Strategy decides what happens when a single part of a package fails to
// parse or decode.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies the part and the component that hit the error.
type Location struct {
	Part      string
	Component string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionWarn:
		return "warn"
	}
	return "unknown"
}

type Context interface{ Done() <-chan struct{} }

// Resolve asks s how to handle err and returns nil when processing may
// continue, or err when the run must abort. A nil strategy is lenient.
func Resolve(s Strategy, ctx Context, err error, loc Location) error {
	if err == nil {
		return nil
	}
	if s == nil {
		return nil
	}
	if s.OnError(ctx, err, loc) == ActionFail {
		return err
	}
	return nil
}
