package favorites

import "errors"

var (
	// ErrMissingContext means no active character or group, or a required
	// identity parameter was absent. Operations abort early with no
	// partial effect.
	ErrMissingContext = errors.New("favorites: no active character or group")

	// ErrNotFound covers unresolvable chats, sessions and favorites.
	ErrNotFound = errors.New("favorites: not found")
)
