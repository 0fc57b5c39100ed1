// Copyright 2024-2026 Aiku AI

package matrixto

import (
	"errors"
	"net/url"
	"testing"

	"maunium.net/go/mautrix/id"
)

func TestUserURL(t *testing.T) {
	t.Parallel()
	got := User("@tomsg_tom:lieuwe.xyz").MatrixToURL()
	want := "https://matrix.to/#/@tomsg_tom:lieuwe.xyz"
	if got != want {
		t.Errorf("User URL: got %q, want %q", got, want)
	}
}

func TestRoomURL(t *testing.T) {
	t.Parallel()
	got := Room("#tomsg:lieuwe.xyz").MatrixToURL()
	want := "https://matrix.to/#/#tomsg:lieuwe.xyz"
	if got != want {
		t.Errorf("Room URL: got %q, want %q", got, want)
	}
}

func TestEventURL(t *testing.T) {
	t.Parallel()
	ref := Event{
		Room: id.RoomID("!opVyAOHWsarCVcEQkE:lieuwe.xyz"),
		ID:   id.EventID("$wjpDcX-sy3dLophlXRfL0pyE4yotZ5XK8v1DF_VMpoU"),
	}
	got := ref.MatrixToURL()
	want := "https://matrix.to/#/!opVyAOHWsarCVcEQkE:lieuwe.xyz/$wjpDcX-sy3dLophlXRfL0pyE4yotZ5XK8v1DF_VMpoU"
	if got != want {
		t.Errorf("Event URL: got %q, want %q", got, want)
	}
}

func TestGroupURL(t *testing.T) {
	t.Parallel()
	got := Group("+group:lieuwe.xyz").MatrixToURL()
	want := "https://matrix.to/#/+group:lieuwe.xyz"
	if got != want {
		t.Errorf("Group URL: got %q, want %q", got, want)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestMediaDownloadURL(t *testing.T) {
	t.Parallel()
	hs := mustParseURL(t, "https://lieuwe.xyz/")
	got, err := MediaDownloadURL(hs, "mxc://lieuwe.xyz/abcDEF123")
	if err != nil {
		t.Fatalf("MediaDownloadURL: %v", err)
	}
	want := "https://lieuwe.xyz/_matrix/media/r0/download/lieuwe.xyz/abcDEF123"
	if got.String() != want {
		t.Errorf("MediaDownloadURL: got %q, want %q", got, want)
	}
}

func TestMediaDownloadURLNotMXC(t *testing.T) {
	t.Parallel()
	hs := mustParseURL(t, "https://lieuwe.xyz/")
	_, err := MediaDownloadURL(hs, "https://lieuwe.xyz/abc")
	if !errors.Is(err, ErrNotMXC) {
		t.Errorf("non-mxc scheme: got %v, want ErrNotMXC", err)
	}
}

func TestMediaDownloadURLInvalidMXC(t *testing.T) {
	t.Parallel()
	hs := mustParseURL(t, "https://lieuwe.xyz/")
	_, err := MediaDownloadURL(hs, "mxc://onlyserver")
	if !errors.Is(err, ErrInvalidMXC) {
		t.Errorf("mxc without media ID: got %v, want ErrInvalidMXC", err)
	}
}
