package room

import "errors"

var ErrNotFound = errors.New("not found")
