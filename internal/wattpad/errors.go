package wattpad

import "errors"

// Sentinel errors returned by the wattpad client. The download layer maps
// these onto user-facing HTTP statuses; none of them is retried.
var (
	// ErrStoryNotFound indicates the story or part does not exist or
	// has been removed (provider 400/404).
	ErrStoryNotFound = errors.New("wattpad: story not found")

	// ErrRateLimited indicates the provider is throttling us (429).
	ErrRateLimited = errors.New("wattpad: rate limited")

	// ErrBadCredentials indicates the username/password pair was rejected.
	ErrBadCredentials = errors.New("wattpad: invalid username or password")
)
