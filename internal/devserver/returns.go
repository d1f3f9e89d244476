package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
)

func (s *Server) handleListReturns(w http.ResponseWriter, r *http.Request) {
	list, err := s.returns.List(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year       int             `json:"year"`
		ReturnData json.RawMessage `json:"return_data"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Year == 0 {
		writeError(w, http.StatusBadRequest, "Year is required")
		return
	}
	tr, err := s.returns.Create(r.Context(), userID(r), req.Year, req.ReturnData)
	if errors.Is(err, repository.ErrConflict) {
		writeError(w, http.StatusBadRequest, "Tax return for this year already exists")
		return
	}
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, tr)
}

func (s *Server) handleUpdateReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tax return not found")
		return
	}
	var req struct {
		Status constants.ReturnStatus `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	tr, err := s.returns.UpdateStatus(r.Context(), userID(r), id, req.Status)
	if err != nil {
		s.writeFailure(w, r, err, "Tax return not found")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	me, err := s.accounts.GetByID(r.Context(), userID(r))
	if err != nil || me.UserType != constants.UserCPA {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	clients, err := s.accounts.ListClients(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, clients)
}
