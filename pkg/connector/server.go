// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
)

// TransactionHandler processes one homeserver transaction: a batch of raw
// events plus the transaction ID. A non-nil error marks the transaction
// failed; the homeserver will retry it.
type TransactionHandler func(txnID string, events []*event.Event) error

// transaction is the body of a PUT /transactions request.
type transaction struct {
	Events []*event.Event `json:"events"`
}

// maxTransactionBodySize caps the request body at 10 MB.
const maxTransactionBodySize = 10 << 20

// rememberedTxns is how many handled transaction IDs are kept for replay
// detection.
const rememberedTxns = 128

// Server receives appservice transactions from the homeserver and dispatches
// them to a TransactionHandler. Replayed transaction IDs are acknowledged
// without re-dispatching, as the appservice API requires idempotency.
type Server struct {
	log     zerolog.Logger
	hsToken string
	handler TransactionHandler

	httpServer *http.Server

	txnMu    sync.Mutex
	seenTxns map[string]struct{}
	txnOrder []string
}

// NewServer creates a transaction receiver. The hsToken must match the
// hs_token of the appservice registration; requests carrying any other token
// are rejected.
func NewServer(log zerolog.Logger, hsToken string, handler TransactionHandler) *Server {
	return &Server{
		log:      log,
		hsToken:  hsToken,
		handler:  handler,
		seenTxns: make(map[string]struct{}),
	}
}

// Handler returns the HTTP handler serving the appservice API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /_matrix/app/v1/transactions/{txnID}", s.handleTransaction)
	// Legacy unprefixed route used by older homeservers.
	mux.HandleFunc("PUT /transactions/{txnID}", s.handleTransaction)
	return mux
}

// ListenAndServe serves the appservice API until the context is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting appservice transaction listener")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return token == s.hsToken
}

// seen reports whether a transaction ID was already handled successfully.
func (s *Server) seen(txnID string) bool {
	s.txnMu.Lock()
	defer s.txnMu.Unlock()
	_, ok := s.seenTxns[txnID]
	return ok
}

// markHandled records a successfully handled transaction ID, evicting the
// oldest entry once the window is full. Failed transactions are not recorded
// so the homeserver's retry is processed again.
func (s *Server) markHandled(txnID string) {
	s.txnMu.Lock()
	defer s.txnMu.Unlock()
	if _, ok := s.seenTxns[txnID]; ok {
		return
	}
	s.seenTxns[txnID] = struct{}{}
	s.txnOrder = append(s.txnOrder, txnID)
	if len(s.txnOrder) > rememberedTxns {
		delete(s.seenTxns, s.txnOrder[0])
		s.txnOrder = s.txnOrder[1:]
	}
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, `{"errcode":"M_FORBIDDEN"}`)
		return
	}

	txnID := r.PathValue("txnID")
	if txnID == "" {
		writeJSON(w, http.StatusBadRequest, `{"errcode":"M_NOT_JSON","error":"missing transaction ID"}`)
		return
	}

	if s.seen(txnID) {
		s.log.Debug().Str("txn_id", txnID).Msg("Ignoring replayed transaction")
		writeJSON(w, http.StatusOK, "{}")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTransactionBodySize)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, `{"errcode":"M_TOO_LARGE"}`)
		return
	}

	var txn transaction
	if err := json.Unmarshal(body, &txn); err != nil {
		s.log.Warn().Err(err).Str("txn_id", txnID).Msg("Failed to parse transaction body")
		writeJSON(w, http.StatusBadRequest, `{"errcode":"M_NOT_JSON"}`)
		return
	}

	s.log.Debug().
		Str("txn_id", txnID).
		Int("events", len(txn.Events)).
		Msg("Handling transaction")

	if err := s.handler(txnID, txn.Events); err != nil {
		s.log.Error().Err(err).Str("txn_id", txnID).Msg("Transaction handler failed")
		writeJSON(w, http.StatusInternalServerError, `{"errcode":"M_UNKNOWN"}`)
		return
	}

	s.markHandled(txnID)
	writeJSON(w, http.StatusOK, "{}")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
