package opc

import "errors"

var errMissing = errors.New("part missing")

// IsMissing reports whether err was caused by a part that does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, errMissing)
}
