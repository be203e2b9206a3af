// Package export turns a chat's favorites into downloadable documents.
// All three formats are pure transforms: nothing here touches stored
// state, the HTTP layer serves the result as an attachment.
package export

import (
	"errors"
	"regexp"
	"time"

	"github.com/starfall-labs/favpanel/internal/host"
)

// ErrNoFavorites means the chat has nothing to export.
var ErrNoFavorites = errors.New("export: no favorites to export")

// Input is everything an export needs, resolved by the caller: the
// chat's metadata document, its full message list, and ambient naming
// context.
type Input struct {
	ChatFile    string
	Metadata    *host.Metadata
	Messages    []host.Message
	DisplayName string // entity/chat display name used in headers and filenames
	EntityName  string // resolved character or group name
	UserName    string

	// Now is the export timestamp; zero means time.Now(). Injectable for
	// deterministic output in tests.
	Now time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

func (in Input) sortedFavorites() ([]host.FavoriteItem, error) {
	if in.Metadata == nil || len(in.Metadata.Favorites) == 0 {
		return nil, ErrNoFavorites
	}
	return host.SortFavorites(in.Metadata.Favorites), nil
}

// File is a rendered export ready for download.
type File struct {
	Name    string
	MIME    string
	Content []byte
	Count   int
}

var unsafeNameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

func safeName(s string) string {
	return unsafeNameChars.ReplaceAllString(s, "_")
}
