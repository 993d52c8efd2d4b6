package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nigoertz/demo-cosmos-api/internal/record"
	"github.com/nigoertz/demo-cosmos-api/internal/store"
)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": message})
}

// respondError translates store errors to status codes. Anything that is
// neither not-found nor a contract violation is a backend failure.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("backend error")
		writeError(w, http.StatusInternalServerError, "backend error")
	}
}

// queryInt parses an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, "Connected to API")
}

// insert decodes, validates and stores one record, replying with the
// "<Kind> saved" envelope the pipeline's monitoring frontend expects.
func insert[T interface{ Validate() error }](s *Server, w http.ResponseWriter, r *http.Request, st *store.Store, message, key string) {
	var rec T
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	doc, err := record.ToDoc(rec)
	if err != nil {
		s.respondError(w, err)
		return
	}
	stored, err := st.Insert(r.Context(), doc)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"message": message, key: stored})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	insert[record.Transaction](s, w, r, s.stores.Transactions, "Transaction saved", "transaction")
}

func (s *Server) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	insert[record.Step](s, w, r, s.stores.Steps, "Step saved", "step")
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	insert[record.Snapshot](s, w, r, s.stores.Snapshots, "Snapshot saved", "snapshot")
}

func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	insert[record.Log](s, w, r, s.stores.Logs, "Log saved", "log")
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txs, err := s.traces.ListTransactionsWithSteps(r.Context(), count, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.traces.GetTransactionWithSteps(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, tx)
}

func (s *Server) handleTransactionSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.traces.SnapshotsForTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, snaps)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.stores.Snapshots.ListAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, snaps)
}

func (s *Server) findByID(w http.ResponseWriter, r *http.Request, st *store.Store) {
	doc, err := st.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	s.findByID(w, r, s.stores.Snapshots)
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	s.findByID(w, r, s.stores.Steps)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	s.findByID(w, r, s.stores.Logs)
}

func (s *Server) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("collection_name")
	st, ok := s.collections[name]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid collection name")
		return
	}
	n, err := queryInt(r, "number_of_entries", -1)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "number_of_entries must be a non-negative integer")
		return
	}
	deleted, err := st.DeleteMany(r.Context(), n)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"message": fmt.Sprintf("%d entries deleted from %s collection", deleted, name),
	})
}
