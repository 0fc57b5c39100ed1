// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"

	"maunium.net/go/mautrix/id"
)

// ghostPrefix is the localpart prefix for bridge-managed Matrix identities.
// A ghost user for the tomsg nick "tom" on domain "lieuwe.xyz" is
// @tomsg_tom:lieuwe.xyz, and the alias for channel "general" is
// #tomsg_general:lieuwe.xyz.
const ghostPrefix = "tomsg_"

// MakeGhostMXID creates the Matrix user ID for a tomsg nick.
func MakeGhostMXID(nick, domain string) id.UserID {
	return id.UserID("@" + ghostPrefix + nick + ":" + domain)
}

// ParseGhostMXID extracts the tomsg nick from a ghost user ID. It reports
// false for user IDs that are not bridge ghosts.
func ParseGhostMXID(userID id.UserID) (nick string, ok bool) {
	localpart, _, err := userID.Parse()
	if err != nil {
		return "", false
	}
	return strings.CutPrefix(localpart, ghostPrefix)
}

// MakeRoomAlias creates the Matrix room alias for a tomsg channel.
func MakeRoomAlias(channel, domain string) id.RoomAlias {
	return id.RoomAlias("#" + ghostPrefix + channel + ":" + domain)
}

// ParseRoomAlias extracts the tomsg channel from a bridge room alias. It
// reports false for aliases outside the bridge namespace.
func ParseRoomAlias(alias id.RoomAlias) (channel string, ok bool) {
	rest, found := strings.CutPrefix(string(alias), "#"+ghostPrefix)
	if !found {
		return "", false
	}
	channel, _, found = strings.Cut(rest, ":")
	if !found || channel == "" {
		return "", false
	}
	return channel, true
}
