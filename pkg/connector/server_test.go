// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const testHSToken = "secrethstoken"

var errTest = errors.New("test error")

func newTestServer(handler TransactionHandler) *Server {
	return NewServer(zerolog.Nop(), testHSToken, handler)
}

func putTransaction(t *testing.T, srv *Server, txnID, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	url := "/_matrix/app/v1/transactions/" + txnID
	if token != "" {
		url += "?access_token=" + token
	}
	req := httptest.NewRequest(http.MethodPut, url, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

const testTxnBody = `{"events":[{"type":"m.room.message","room_id":"!room:lieuwe.xyz","sender":"@lieuwe:lieuwe.xyz","content":{"msgtype":"m.text","body":"hoi"}}]}`

func TestServerDispatchesTransaction(t *testing.T) {
	t.Parallel()
	var gotTxnID string
	var gotEvents []*event.Event
	srv := newTestServer(func(txnID string, events []*event.Event) error {
		gotTxnID = txnID
		gotEvents = events
		return nil
	})

	w := putTransaction(t, srv, "txn1", testHSToken, testTxnBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if w.Body.String() != "{}" {
		t.Errorf("body: got %q, want {}", w.Body.String())
	}
	if gotTxnID != "txn1" {
		t.Errorf("txn ID: got %q, want txn1", gotTxnID)
	}
	if len(gotEvents) != 1 {
		t.Fatalf("events: got %d, want 1", len(gotEvents))
	}
	if gotEvents[0].Sender != id.UserID("@lieuwe:lieuwe.xyz") {
		t.Errorf("sender: got %q", gotEvents[0].Sender)
	}
}

func TestServerRejectsBadToken(t *testing.T) {
	t.Parallel()
	called := false
	srv := newTestServer(func(string, []*event.Event) error {
		called = true
		return nil
	})

	w := putTransaction(t, srv, "txn1", "wrongtoken", testTxnBody)
	if w.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", w.Code)
	}
	if called {
		t.Error("handler must not run for unauthorized requests")
	}
}

func TestServerAcceptsBearerToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(func(string, []*event.Event) error { return nil })

	req := httptest.NewRequest(http.MethodPut, "/_matrix/app/v1/transactions/txn1", strings.NewReader(testTxnBody))
	req.Header.Set("Authorization", "Bearer "+testHSToken)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
}

func TestServerRejectsBadJSON(t *testing.T) {
	t.Parallel()
	srv := newTestServer(func(string, []*event.Event) error { return nil })

	w := putTransaction(t, srv, "txn1", testHSToken, "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestServerDeduplicatesTransactions(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := newTestServer(func(string, []*event.Event) error {
		calls++
		return nil
	})

	for range 3 {
		w := putTransaction(t, srv, "txn1", testHSToken, testTxnBody)
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", w.Code)
		}
	}
	if calls != 1 {
		t.Errorf("handler calls: got %d, want 1 (replays must not re-dispatch)", calls)
	}
}

func TestServerRetriesFailedTransaction(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := newTestServer(func(string, []*event.Event) error {
		calls++
		if calls == 1 {
			return errTest
		}
		return nil
	})

	if w := putTransaction(t, srv, "txn1", testHSToken, testTxnBody); w.Code != http.StatusInternalServerError {
		t.Fatalf("first attempt: got %d, want 500", w.Code)
	}
	if w := putTransaction(t, srv, "txn1", testHSToken, testTxnBody); w.Code != http.StatusOK {
		t.Fatalf("retry: got %d, want 200", w.Code)
	}
	if calls != 2 {
		t.Errorf("handler calls: got %d, want 2 (failed transactions must be retryable)", calls)
	}
}

func TestServerLegacyRoute(t *testing.T) {
	t.Parallel()
	called := false
	srv := newTestServer(func(string, []*event.Event) error {
		called = true
		return nil
	})

	req := httptest.NewRequest(http.MethodPut, "/transactions/txn1?access_token="+testHSToken, strings.NewReader(testTxnBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	if !called {
		t.Error("legacy route should dispatch to the handler")
	}
}
