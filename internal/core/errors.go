package core

import "errors"

var (
	// ErrInvalidJob is returned by Enqueue when a required field is missing.
	ErrInvalidJob = errors.New("invalid job: missing required fields")

	// ErrJobNotFound is returned when a job id does not exist in the queue.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidStatus is returned for a status value outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrPrinterNotFound is returned when a printer id is not registered.
	ErrPrinterNotFound = errors.New("printer not found")
)
