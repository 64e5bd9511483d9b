package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/decode"
	"github.com/sells-group/pricing-cli/internal/identity"
	"github.com/sells-group/pricing-cli/internal/ingest"
	"github.com/sells-group/pricing-cli/internal/model"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

type handlers struct {
	deps Deps
	opts Options
}

type messageBody struct {
	Message string `json:"message"`
}

func message(msg string) messageBody { return messageBody{Message: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func tenantParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tourOperatorId"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, message("Invalid tourOperatorId."))
		return
	}
	caller, _ := identity.FromContext(r.Context())
	if !caller.CanAccessTenant(tenantID) {
		writeJSON(w, http.StatusForbidden, message("Forbidden."))
		return
	}

	q := r.URL.Query()
	skipBadRows := h.opts.SkipBadRows
	if raw := q.Get("skipBadRows"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, message("skipBadRows must be true or false."))
			return
		}
		skipBadRows = v
	}
	mode := h.opts.DefaultMode
	if raw := q.Get("mode"); raw != "" {
		mode = model.ParseMode(raw)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, message("File is too large."))
			return
		}
		writeJSON(w, http.StatusBadRequest, message("CSV file is required"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil || header.Size == 0 {
		writeJSON(w, http.StatusBadRequest, message("CSV file is required"))
		return
	}
	defer file.Close() //nolint:errcheck

	log := zap.L().With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", header.Filename),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	summary, err := h.deps.Uploader.Ingest(r.Context(), ingest.Request{
		TenantID:     tenantID,
		Input:        file,
		Format:       decode.FormatFromName(header.Filename),
		ConnectionID: q.Get("connectionId"),
		SkipBadRows:  skipBadRows,
		Mode:         mode,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, ingest.ErrDuplicateAbort):
		log.Info("api: upload aborted on duplicate", zap.Error(err))
		writeJSON(w, http.StatusConflict, summary)
	case errors.Is(err, context.Canceled):
		// The client is gone; nothing can be written back.
		log.Info("api: upload cancelled by client")
	default:
		log.Error("api: upload failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, message("Upload failed."))
	}
}

func (h *handlers) data(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, message("Invalid tourOperatorId."))
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("page must be an integer."))
		return
	}
	pageSize, err := intParam(r, "pageSize", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("pageSize must be an integer."))
		return
	}

	result, err := h.deps.Querier.Query(r.Context(), tenantID, page, pageSize)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		zap.L().Error("api: query failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, message("Query failed."))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
