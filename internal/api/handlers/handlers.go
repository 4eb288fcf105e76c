package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/middleware"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/dvloznov/txledger/internal/logger"
	"github.com/dvloznov/txledger/internal/service"
	"github.com/rs/zerolog"
)

// TransactionsPath is the collection route. Single records live under
// TransactionsPath + "/{transactionNo}".
const TransactionsPath = "/api/v1/transactions"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc             service.TransactionService
	defaultPageSize int
	now             func() time.Time
	log             zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc service.TransactionService, defaultPageSize int, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc:             svc,
		defaultPageSize: defaultPageSize,
		now:             time.Now,
		log:             log,
	}
}

// Register mounts the transaction routes on mux.
func (h *TransactionsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc(TransactionsPath, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListTransactions(w, r)
		case http.MethodPost:
			h.CreateTransaction(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc(TransactionsPath+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, TransactionsPath+"/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, apperr.NotFound.Code(), "Transaction not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			h.GetTransaction(w, r, id)
		case http.MethodPut:
			h.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			h.DeleteTransaction(w, r, id)
		default:
			methodNotAllowed(w)
		}
	})
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.WriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if details := req.Validate(true); details != nil {
		middleware.WriteValidationError(w, details)
		return
	}

	// A serial number that already produced a record is answered with that record.
	replay := h.svc.ExistsByToken(ctx, req.SerialNumber)

	now := h.now().UnixMilli()
	if req.CreateTime == 0 {
		req.CreateTime = now
	}

	id, err := h.svc.CreateRecord(ctx, req.SerialNumber, req.ToDomain("", now))
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create transaction")
		return
	}

	stored, err := h.svc.GetRecord(ctx, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to load created transaction")
		return
	}

	body := dto.OK(dto.TransactionData{Transaction: dto.FromDomain(stored)})
	if replay {
		middleware.WriteJSON(w, http.StatusOK, body)
		return
	}
	w.Header().Set("Location", TransactionsPath+"/"+id)
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// GetTransaction handles GET /api/v1/transactions/{transactionNo}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.svc.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OK(dto.TransactionData{Transaction: dto.FromDomain(tx)}))
}

// UpdateTransaction handles PUT /api/v1/transactions/{transactionNo}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	var req dto.WriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if details := req.Validate(false); details != nil {
		middleware.WriteValidationError(w, details)
		return
	}

	if err := h.svc.UpdateRecord(ctx, req.ToDomain(id, h.now().UnixMilli())); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to update transaction")
		return
	}

	stored, err := h.svc.GetRecord(ctx, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to load updated transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OK(dto.TransactionData{Transaction: dto.FromDomain(stored)}))
}

// DeleteTransaction handles DELETE /api/v1/transactions/{transactionNo}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteRecord(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions handles GET /api/v1/transactions?cursor=&pageSize=
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	pageSize := h.defaultPageSize
	if v := query.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			middleware.WriteValidationError(w, map[string]string{"pageSize": "must be an integer"})
			return
		}
		pageSize = n
	}

	var from *domain.Cursor
	if v := query.Get("cursor"); v != "" {
		c, err := h.svc.DecodeCursor(v)
		if err != nil {
			writeServiceError(w, r, h.log, err, "Invalid cursor")
			return
		}
		from = &c
	}

	page, err := h.svc.ListRecords(ctx, from, pageSize)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OK(dto.FromPage(page)))
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, apperr.Argument.Code(), "Invalid JSON body")
		return false
	}
	return true
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Duplicate, apperr.Concurrency:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Cursor, apperr.Argument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, fallback zerolog.Logger, err error, msg string) {
	log := logger.FromContext(r.Context(), fallback)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.System {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, apperr.System.Code(), "Internal server error")
		return
	}

	log.Debug().Err(err).Str("kind", appErr.Kind.String()).Msg(msg)
	if appErr.Kind == apperr.Concurrency {
		w.Header().Set("Retry-After", "1")
	}
	middleware.WriteError(w, StatusFor(appErr.Kind), appErr.Kind.Code(), appErr.Error())
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, apperr.Argument.Code(), "Method not allowed")
}
