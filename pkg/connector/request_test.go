// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"maunium.net/go/mautrix"
)

func TestRequestBuilderQueryParams(t *testing.T) {
	t.Parallel()
	var gotPath, gotUserID, gotTS string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUserID = r.URL.Query().Get("user_id")
		gotTS = r.URL.Query().Get("ts")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"event_id":"$sent"}`))
	}))
	defer ts.Close()

	client, err := mautrix.NewClient(ts.URL, "@tomsgbot:lieuwe.xyz", "astoken")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var resp struct {
		EventID string `json:"event_id"`
	}
	err = NewRequest(client, http.MethodPut, "v3", "rooms", "!room:lieuwe.xyz", "send", "m.room.message", "txn1").
		UserID("@tomsg_tom:lieuwe.xyz").
		Timestamp(12345).
		Do(context.Background(), map[string]string{"msgtype": "m.text", "body": "hoi"}, &resp)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotPath != "/_matrix/client/v3/rooms/!room:lieuwe.xyz/send/m.room.message/txn1" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotUserID != "@tomsg_tom:lieuwe.xyz" {
		t.Errorf("user_id param: got %q", gotUserID)
	}
	if gotTS != "12345" {
		t.Errorf("ts param: got %q", gotTS)
	}
	if resp.EventID != "$sent" {
		t.Errorf("response: got %q, want $sent", resp.EventID)
	}
}

func TestRequestBuilderErrorResponse(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"no"}`))
	}))
	defer ts.Close()

	client, err := mautrix.NewClient(ts.URL, "@tomsgbot:lieuwe.xyz", "astoken")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = NewRequest(client, http.MethodGet, "v3", "account", "whoami").Do(context.Background(), nil, nil)
	if err == nil {
		t.Error("Do should surface the homeserver error")
	}
}
