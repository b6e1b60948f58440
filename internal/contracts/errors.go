package contracts

import "errors"

// ErrKillSwitchActive aborts a pipeline run before any broker call.
var ErrKillSwitchActive = errors.New("kill switch active")

// ErrJobRunning is returned when a firing is skipped because the prior
// run of the same job is still active.
var ErrJobRunning = errors.New("job already running")

// ErrJobNotFound is returned for trigger requests naming an unknown job.
var ErrJobNotFound = errors.New("job not found")

// TransientError marks a broker failure as retryable (connectivity,
// timeouts). Non-transient rejections are never retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
