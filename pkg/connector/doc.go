// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector implements the Matrix side of a Matrix-tomsg bridge:
// appservice registration, the transaction receiver, and the translation
// core that rewrites message bodies between Matrix HTML and tomsg plain
// text.
//
// # Core Types
//
// [TomsgConnector] is the bridge driver. It owns one identity map pairing
// Matrix users with tomsg nicknames and one pairing room aliases with tomsg
// channels, and uses them to resolve mentions in both conversion directions.
//
// [Server] receives appservice transactions from the homeserver, checks the
// hs_token, deduplicates replayed transaction IDs and dispatches event
// batches to a handler (normally [TomsgConnector.HandleTransaction]).
//
// [RequestBuilder] prepares outgoing client-server API requests, including
// the user_id and ts query parameters appservices use to impersonate ghosts
// and backdate messages.
//
// # Echo Prevention
//
// Messages authored by bridge ghosts (@tomsg_* senders) are never relayed
// back to tomsg, and tomsg nicks carrying the configured nick_prefix are
// never relayed to Matrix. Both checks are needed to keep the two relay
// directions from feeding each other.
//
// # Sub-packages
//
//   - idmap holds the dual-keyed identity map.
//   - matrixfmt converts Matrix HTML to tomsg plain text.
//   - tomsgfmt converts tomsg plain text to Matrix HTML.
//   - matrixto renders matrix.to mention URLs and media download URLs.
package connector
