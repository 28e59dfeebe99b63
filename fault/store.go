package fault

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrSerialization   = errors.New("serialization failed")
	ErrStorageEngine   = errors.New("storage engine failure")
	ErrClosed          = errors.New("store closed")
	ErrTxClosed        = errors.New("transaction closed")
	ErrForeignTx       = errors.New("transaction belongs to another store")
	ErrBucketNotFound  = errors.New("bucket not found")
)
