// Copyright 2024-2026 Aiku AI

package connector

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/mautrix-tomsg/pkg/connector/idmap"
	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixto"
)

// UserRecord pairs a Matrix user with their tomsg nickname.
type UserRecord struct {
	MXID id.UserID
	Nick string
}

func (u UserRecord) MatrixKey() id.UserID { return u.MXID }
func (u UserRecord) ExternalKey() string  { return u.Nick }

// RoomRecord pairs a Matrix room alias with a tomsg channel.
type RoomRecord struct {
	Alias   id.RoomAlias
	Channel string
}

func (r RoomRecord) MatrixKey() id.RoomAlias { return r.Alias }
func (r RoomRecord) ExternalKey() string     { return r.Channel }

// TomsgConnector is the bridge driver. It owns the identity maps pairing
// Matrix users/rooms with their tomsg counterparts and relays message bodies
// in both directions through the formatter packages.
//
// The identity maps are guarded by a single RWMutex: mutations take the
// write lock, lookups and snapshot builds take the read lock. Mention
// resolvers and compiled mention tables are snapshots; they go stale if the
// maps change while a conversion is in flight, which is harmless for message
// relay.
type TomsgConnector struct {
	Config *Config
	Log    zerolog.Logger
	// Client is the homeserver client used for outgoing requests. Optional;
	// nil in tests and in tools that only convert.
	Client *mautrix.Client

	// OnTomsgMessage receives the tomsg rendering of each relayed Matrix
	// message. A nil sink drops messages (conversion still runs).
	OnTomsgMessage func(roomID id.RoomID, sender id.UserID, text string) error

	mu    sync.RWMutex
	users *idmap.Map[id.UserID, string, UserRecord]
	rooms *idmap.Map[id.RoomAlias, string, RoomRecord]
}

// NewConnector creates a bridge driver with empty identity maps.
func NewConnector(cfg *Config, log zerolog.Logger) *TomsgConnector {
	return &TomsgConnector{
		Config: cfg,
		Log:    log,
		users:  idmap.New[id.UserID, string, UserRecord](),
		rooms:  idmap.New[id.RoomAlias, string, RoomRecord](),
	}
}

// AddUser registers a Matrix user ↔ tomsg nick pairing. Records displaced by
// key collisions are returned.
func (tc *TomsgConnector) AddUser(mxid id.UserID, nick string) []UserRecord {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	displaced := tc.users.Insert(UserRecord{MXID: mxid, Nick: nick})
	tc.Log.Debug().
		Str("mxid", string(mxid)).
		Str("nick", nick).
		Int("displaced", len(displaced)).
		Msg("Registered user pairing")
	return displaced
}

// RemoveUserByMXID tears down a user pairing by its Matrix side.
func (tc *TomsgConnector) RemoveUserByMXID(mxid id.UserID) (UserRecord, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.users.RemoveMatrix(mxid)
}

// RemoveUserByNick tears down a user pairing by its tomsg side.
func (tc *TomsgConnector) RemoveUserByNick(nick string) (UserRecord, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.users.RemoveExternal(nick)
}

// GetUserByMXID looks up a pairing by Matrix user ID.
func (tc *TomsgConnector) GetUserByMXID(mxid id.UserID) (UserRecord, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.users.GetMatrix(mxid)
}

// GetUserByNick looks up a pairing by tomsg nick.
func (tc *TomsgConnector) GetUserByNick(nick string) (UserRecord, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.users.GetExternal(nick)
}

// AddRoom registers a room alias ↔ tomsg channel pairing.
func (tc *TomsgConnector) AddRoom(alias id.RoomAlias, channel string) []RoomRecord {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	displaced := tc.rooms.Insert(RoomRecord{Alias: alias, Channel: channel})
	tc.Log.Debug().
		Str("alias", string(alias)).
		Str("channel", channel).
		Int("displaced", len(displaced)).
		Msg("Registered room pairing")
	return displaced
}

// RemoveRoomByAlias tears down a room pairing by its Matrix side.
func (tc *TomsgConnector) RemoveRoomByAlias(alias id.RoomAlias) (RoomRecord, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.rooms.RemoveMatrix(alias)
}

// RemoveRoomByChannel tears down a room pairing by its tomsg side.
func (tc *TomsgConnector) RemoveRoomByChannel(channel string) (RoomRecord, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.rooms.RemoveExternal(channel)
}

// GetRoomByAlias looks up a pairing by room alias.
func (tc *TomsgConnector) GetRoomByAlias(alias id.RoomAlias) (RoomRecord, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.rooms.GetMatrix(alias)
}

// GetRoomByChannel looks up a pairing by tomsg channel.
func (tc *TomsgConnector) GetRoomByChannel(channel string) (RoomRecord, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.rooms.GetExternal(channel)
}

// UserCount returns the number of user pairings.
func (tc *TomsgConnector) UserCount() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.users.Len()
}

// RoomCount returns the number of room pairings.
func (tc *TomsgConnector) RoomCount() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.rooms.Len()
}

// ShouldRelayNick reports whether a message from the given tomsg nick should
// be relayed to Matrix. Nicks carrying the configured echo-prevention prefix
// are bridge-managed and must not loop back.
func (tc *TomsgConnector) ShouldRelayNick(nick string) bool {
	if tc.Config.NickPrefix == "" {
		return true
	}
	return !strings.HasPrefix(nick, tc.Config.NickPrefix)
}

// MediaDownloadURL derives the HTTP download URL for an mxc content URI
// against the configured homeserver.
func (tc *TomsgConnector) MediaDownloadURL(mxcURI string) (*url.URL, error) {
	hs, err := tc.Config.ParsedHomeserverURL()
	if err != nil {
		return nil, fmt.Errorf("invalid homeserver URL in config: %w", err)
	}
	return matrixto.MediaDownloadURL(hs, mxcURI)
}

// HandleTransaction relays a homeserver transaction: each message event is
// converted to tomsg text and handed to the OnTomsgMessage sink. Events from
// bridge ghosts are skipped so bridged messages never echo back. A sink
// failure fails the transaction; conversion itself cannot fail.
func (tc *TomsgConnector) HandleTransaction(txnID string, events []*event.Event) error {
	for _, evt := range events {
		if evt.Type != event.EventMessage {
			continue
		}
		if _, isGhost := ParseGhostMXID(evt.Sender); isGhost {
			continue
		}
		if err := evt.Content.ParseRaw(evt.Type); err != nil {
			tc.Log.Warn().Err(err).
				Str("txn_id", txnID).
				Str("event_id", string(evt.ID)).
				Msg("Skipping unparsable message event")
			continue
		}
		content := evt.Content.AsMessage()
		if content == nil {
			continue
		}

		text := content.Body
		if content.Format == event.FormatHTML && content.FormattedBody != "" {
			text = tc.MatrixToTomsg(content.FormattedBody)
		}

		tc.Log.Debug().
			Str("txn_id", txnID).
			Str("room_id", string(evt.RoomID)).
			Str("sender", string(evt.Sender)).
			Msg("Relaying message to tomsg")

		if tc.OnTomsgMessage != nil {
			if err := tc.OnTomsgMessage(evt.RoomID, evt.Sender, text); err != nil {
				return fmt.Errorf("failed to relay event %s: %w", evt.ID, err)
			}
		}
	}
	return nil
}
