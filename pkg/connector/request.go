// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"strconv"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// RequestBuilder prepares one request to the homeserver's client-server API.
// Appservices routinely decorate requests with the user_id query parameter
// (to act as a ghost user) and the ts parameter (to backdate bridged
// messages); the builder makes those chainable.
type RequestBuilder struct {
	client *mautrix.Client
	method string
	path   mautrix.ClientURLPath
	query  map[string]string
}

// NewRequest creates a builder for the given method and client API path.
// The path is relative to /_matrix/client.
func NewRequest(client *mautrix.Client, method string, path ...any) *RequestBuilder {
	return &RequestBuilder{
		client: client,
		method: method,
		path:   mautrix.ClientURLPath(path),
		query:  make(map[string]string),
	}
}

// UserID sets the user_id query parameter, impersonating the given ghost.
func (b *RequestBuilder) UserID(userID id.UserID) *RequestBuilder {
	b.query["user_id"] = string(userID)
	return b
}

// Timestamp sets the ts query parameter in milliseconds.
func (b *RequestBuilder) Timestamp(ts int64) *RequestBuilder {
	b.query["ts"] = strconv.FormatInt(ts, 10)
	return b
}

// Query sets an arbitrary query parameter.
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	b.query[key] = value
	return b
}

// Do submits the request. reqBody is JSON-encoded when non-nil; the response
// is decoded into resBody when non-nil.
func (b *RequestBuilder) Do(ctx context.Context, reqBody, resBody any) error {
	url := b.client.BuildURLWithQuery(b.path, b.query)
	_, err := b.client.MakeRequest(ctx, b.method, url, reqBody, resBody)
	return err
}
