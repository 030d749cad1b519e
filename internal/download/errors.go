package download

import "errors"

var (
	// ErrCredentialPair indicates only one of username/password was
	// supplied. Both or neither.
	ErrCredentialPair = errors.New("download: username and password must be provided together")

	// ErrCoverUnavailable indicates the story cover could not be
	// retrieved. Generation never starts without it.
	ErrCoverUnavailable = errors.New("download: cover image unavailable")

	// ErrAuthorImageUnavailable indicates the author image required by
	// the PDF format could not be retrieved.
	ErrAuthorImageUnavailable = errors.New("download: author image unavailable")
)
