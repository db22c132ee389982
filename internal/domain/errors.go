package domain

import "errors"

var (
	// ErrMalformedKey is returned when a store key does not follow the
	// documented naming convention.
	ErrMalformedKey = errors.New("malformed store key")
	// ErrEmptySubmission is returned when a submission is missing the fields
	// that make up its identity key.
	ErrEmptySubmission = errors.New("submission missing username, level, or model")
	// ErrNoParticipants is returned when credential seeding is requested
	// without an auth section in the event config.
	ErrNoParticipants = errors.New("no participants configured")
)
