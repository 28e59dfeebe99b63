package fault

import "errors"

var (
	ErrNotImplemented    = errors.New("not implemented")
	ErrSeparatorRequired = errors.New("key separator is required")
	ErrSeparatorInKey    = errors.New("serialized key contains the key separator")
	ErrAmbiguous         = errors.New("more than one match")
)
