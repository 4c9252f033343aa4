package cars

import "errors"

var (
	ErrNotFound       = errors.New("Car not found")
	ErrEmptyUpdate    = errors.New("No data provided for update")
	ErrInvalidField   = errors.New("invalid field")
	ErrImageURLPolicy = errors.New("image URL is not a blob-store URL")
)
