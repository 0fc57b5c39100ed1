// Copyright 2024-2026 Aiku AI

package connector

import (
	"maunium.net/go/mautrix/id"

	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixfmt"
	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixto"
	"github.com/aiku/mautrix-tomsg/pkg/connector/tomsgfmt"
)

// MatrixToTomsg converts Matrix HTML to tomsg plain text, resolving mentions
// against the live identity maps.
func (tc *TomsgConnector) MatrixToTomsg(html string) string {
	return tc.newOutboundConverter().Convert(html)
}

// TomsgToMatrix converts tomsg plain text to Matrix HTML, linking known
// nicks and channels as mention anchors. The mention table is compiled from
// a snapshot of the identity maps; use MentionSnapshot to reuse one table
// across many messages.
func (tc *TomsgConnector) TomsgToMatrix(text string) string {
	return tc.MentionSnapshot().Convert(text)
}

// newOutboundConverter builds the converter for one Matrix→tomsg
// conversion. The resolvers read the identity maps under the read lock, so
// a conversion may observe pairings added or removed while it runs.
func (tc *TomsgConnector) newOutboundConverter() *matrixfmt.Converter {
	return &matrixfmt.Converter{
		Users: matrixfmt.UserResolverFunc(func(userID id.UserID) (string, bool) {
			rec, ok := tc.GetUserByMXID(userID)
			if !ok {
				return "", false
			}
			return rec.Nick, true
		}),
		Rooms: matrixfmt.RoomResolverFunc(func(alias id.RoomAlias) (string, bool) {
			rec, ok := tc.GetRoomByAlias(alias)
			if !ok {
				return "", false
			}
			return rec.Channel, true
		}),
		Elements: standardElements(),
	}
}

// MentionSnapshot compiles a mention table from the current identity maps:
// every known nick and channel becomes a matchable name.
func (tc *TomsgConnector) MentionSnapshot() *tomsgfmt.MentionTable {
	tc.mu.RLock()
	entries := make(map[string]matrixto.Reference, tc.users.Len()+tc.rooms.Len())
	for rec := range tc.users.All() {
		entries[rec.Nick] = matrixto.User(rec.MXID)
	}
	for rec := range tc.rooms.All() {
		entries[rec.Channel] = matrixto.Room(rec.Alias)
	}
	tc.mu.RUnlock()

	return tomsgfmt.NewMentionTable(entries)
}

// standardElements is the bridge's default rendering of Matrix formatting in
// plain text: reply fallbacks are dropped, emphasis becomes markdown-style
// markers, line breaks survive.
func standardElements() map[string]matrixfmt.ElementHandler {
	wrap := func(marker string) matrixfmt.ElementHandler {
		return matrixfmt.ElementHandlerFunc(func(el *matrixfmt.Element) {
			el.Prepend(marker)
			el.RemoveKeepContent()
			el.Append(marker)
		})
	}
	return map[string]matrixfmt.ElementHandler{
		"mx-reply": matrixfmt.ElementHandlerFunc(func(el *matrixfmt.Element) {
			el.Remove()
		}),
		"em":     wrap("*"),
		"strong": wrap("**"),
		"code":   wrap("`"),
		"br": matrixfmt.ElementHandlerFunc(func(el *matrixfmt.Element) {
			el.ReplaceWith("\n")
		}),
	}
}
