package service

import "errors"

var (
	// ErrUserNotFound is returned by Predict when the feature store has no row
	// for the requested user.
	ErrUserNotFound = errors.New("user not found")
	// ErrDataSink wraps result sink failures. Nothing from the run is
	// committed when it is returned.
	ErrDataSink = errors.New("result sink failed")
	// ErrInvalidSchedule is returned for cron expressions gronx rejects.
	ErrInvalidSchedule = errors.New("invalid batch schedule")
)
