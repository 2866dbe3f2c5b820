package news

import "errors"

// Domain errors.
var (
	ErrNewsNotFound  = errors.New("news not found")
	ErrNewsExists    = errors.New("news with this link already exists")
	ErrInvalidSource = errors.New("unknown source id")
	ErrInvalidKey    = errors.New("key must be an id or name:source_id")
)
