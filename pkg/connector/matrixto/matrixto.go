// Copyright 2024-2026 Aiku AI

// Package matrixto renders matrix.to mention URLs for users, rooms, events
// and groups, and derives HTTP download URLs from mxc content URIs.
package matrixto

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"maunium.net/go/mautrix/id"
)

// BaseURL is the host all mention URLs are rendered against.
const BaseURL = "https://matrix.to/#/"

// Reference is anything that can be pointed at with a matrix.to URL.
type Reference interface {
	// MatrixToURL renders the canonical https://matrix.to/#/... form.
	MatrixToURL() string
}

// User references a Matrix user by full MXID.
type User id.UserID

func (u User) MatrixToURL() string {
	return BaseURL + string(u)
}

// Room references a room by its alias.
type Room id.RoomAlias

func (r Room) MatrixToURL() string {
	return BaseURL + string(r)
}

// Event references an event. Event IDs are room-local, so the room ID is
// part of the reference.
type Event struct {
	Room id.RoomID
	ID   id.EventID
}

func (e Event) MatrixToURL() string {
	return BaseURL + string(e.Room) + "/" + string(e.ID)
}

// Group references a group; the ID must carry its leading + sigil.
type Group string

func (g Group) MatrixToURL() string {
	return BaseURL + string(g)
}

// Errors returned by MediaDownloadURL.
var (
	// ErrNotMXC means the content URI does not use the mxc scheme.
	ErrNotMXC = errors.New("matrixto: content URI is not an mxc URI")
	// ErrInvalidMXC means the mxc URI's server or media ID could not be
	// parsed.
	ErrInvalidMXC = errors.New("matrixto: malformed mxc URI")
)

// MediaDownloadURL converts an mxc content URI into the HTTP URL the media
// can be downloaded from, using the given homeserver as the host.
func MediaDownloadURL(homeserver *url.URL, mxcURI string) (*url.URL, error) {
	if !strings.HasPrefix(mxcURI, "mxc://") {
		return nil, ErrNotMXC
	}
	parsed, err := id.ParseContentURI(mxcURI)
	if err != nil || parsed.Homeserver == "" || parsed.FileID == "" {
		return nil, ErrInvalidMXC
	}

	raw := fmt.Sprintf("%s_matrix/media/r0/download/%s/%s", homeserver, parsed.Homeserver, parsed.FileID)
	res, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("matrixto: invalid download URL: %w", err)
	}
	return res, nil
}
