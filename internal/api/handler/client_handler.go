package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/client"
	"lending-engine/internal/pkg/apperrors"
)

type ClientHandler struct {
	service client.ClientService
	logger  *slog.Logger
}

func NewClientHandler(s client.ClientService, l *slog.Logger) *ClientHandler {
	if s == nil {
		panic("client service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &ClientHandler{
		service: s,
		logger:  l.With("component", "ClientHandler"),
	}
}

func getClientIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "clientID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: clientID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid clientID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

// CreateClient handles POST /clients
// @Summary Create a new client
// @Description Creates a new client record with name, phone and lending group.
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body dto.CreateClientRequest true "Client creation request"
// @Success 201 {object} dto.ClientResponse "Client successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload (e.g., empty name/group)"
// @Failure 500 {object} dto.ErrorResponse "Internal server error during creation"
// @Router /clients [post]
// @Security BearerAuth
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create client request")

	var req dto.CreateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	createdClient, err := h.service.CreateNewClient(r.Context(), req.Name, req.Phone, req.GroupName)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to create client", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewClientResponse(createdClient)
	h.logger.InfoContext(r.Context(), "Client created successfully", slog.String("clientID", resp.ClientID))
	respondJSON(w, http.StatusCreated, resp)
}

// GetClient handles GET /clients/{clientID}
// @Summary Retrieve client details
// @Description Retrieves details for a specific client by their ID.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID" Minimum(1)
// @Success 200 {object} dto.ClientResponse "Client details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID format"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID} [get]
// @Security BearerAuth
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := getClientIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get client ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	domainClient, err := h.service.GetClient(r.Context(), clientID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, client.ErrNotFound) && !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get client", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewClientResponse(domainClient))
}

// ListClients handles GET /clients
// @Summary List clients
// @Description Retrieves a list of active clients, or finds the client holding a given loan when the loan_id query parameter is present.
// @Tags Clients
// @Produce json
// @Param loan_id query int false "Loan ID to search for" Minimum(1)
// @Success 200 {array} dto.ClientResponse "List of clients"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan_id query parameter"
// @Failure 404 {object} dto.ErrorResponse "Client not found for the given loan ID"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients [get]
// @Security BearerAuth
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("loan_id") != "" {
		h.findClientByLoan(w, r)
		return
	}

	h.logger.DebugContext(r.Context(), "Received list clients request")

	clients, err := h.service.ListActiveClients(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list active clients", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := make([]dto.ClientResponse, len(clients))
	for i, c := range clients {
		resp[i] = dto.NewClientResponse(c)
	}

	h.logger.InfoContext(r.Context(), "Clients listed successfully", slog.Int("count", len(resp)))
	respondJSON(w, http.StatusOK, resp)
}

func (h *ClientHandler) findClientByLoan(w http.ResponseWriter, r *http.Request) {
	loanIDStr := r.URL.Query().Get("loan_id")
	loanID, err := strconv.ParseInt(loanIDStr, 10, 64)
	if err != nil || loanID <= 0 {
		h.logger.WarnContext(r.Context(), "Invalid loan_id query parameter format", slog.String("loan_id_str", loanIDStr), slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: invalid loan_id format: %s", apperrors.ErrInvalidArgument, loanIDStr))
		return
	}

	domainClient, err := h.service.FindClientByLoan(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, client.ErrNotFound) && !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to find client by loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewClientResponse(domainClient)
	h.logger.InfoContext(r.Context(), "Client found successfully by loan ID", slog.String("clientID", resp.ClientID))
	respondJSON(w, http.StatusOK, resp)
}

// AssignLoanToClient handles PUT /clients/{clientID}/loan
// @Summary Assign a loan to a client
// @Description Associates a loan ID with a specific client. Fails if the client already has a different loan assigned or if the loan ID is already held by another client.
// @Tags Clients
// @Accept json
// @Produce json
// @Param clientID path int true "Client ID" Minimum(1)
// @Param request body dto.AssignLoanRequest true "Loan ID payload (loanId must be positive)"
// @Success 204 "Loan successfully assigned"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID or request payload"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 409 {object} dto.ErrorResponse "Conflict (e.g., client already has loan, loan ID already assigned)"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID}/loan [put]
// @Security BearerAuth
func (h *ClientHandler) AssignLoanToClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := getClientIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get client ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var req dto.AssignLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed: LoanID is invalid")
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	err = h.service.AssignLoanToClient(r.Context(), clientID, req.LoanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, client.ErrNotFound) &&
			!errors.Is(err, client.ErrDuplicateLoanID) &&
			!errors.Is(err, client.ErrClientAlreadyHasLoan) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to assign loan to client", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan assigned to client successfully")
	respondJSON(w, http.StatusNoContent, nil)
}

// DeactivateClient handles DELETE /clients/{clientID}
// @Summary Deactivate a client
// @Description Marks a client account as inactive.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID" Minimum(1)
// @Success 204 "Client successfully deactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID} [delete]
// @Security BearerAuth
func (h *ClientHandler) DeactivateClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := getClientIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get client ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	err = h.service.DeactivateClient(r.Context(), clientID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, client.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to deactivate client", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Client deactivated successfully")
	respondJSON(w, http.StatusNoContent, nil)
}

// ReactivateClient handles PUT /clients/{clientID}/reactivate
// @Summary Reactivate a client
// @Description Marks a client account as active.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID" Minimum(1)
// @Success 204 "Client successfully reactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID}/reactivate [put]
// @Security BearerAuth
func (h *ClientHandler) ReactivateClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := getClientIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get client ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	err = h.service.ReactivateClient(r.Context(), clientID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, client.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to reactivate client", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Client reactivated successfully")
	respondJSON(w, http.StatusNoContent, nil)
}
