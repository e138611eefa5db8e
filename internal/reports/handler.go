package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/expensa-app/expensa/internal/platform/httpx"
	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

// IdempotencyHeader carries the client's replay-protection key.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyPort guards decision endpoints against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes report and approval-router endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	idem    IdempotencyPort
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, idem IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, idem: idem}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReportsView, rbac.PermReportsCreate, rbac.PermReportsDecide))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReportsCreate))
		r.Post("/", h.create)
		r.Put("/{id}", h.edit)
		r.Put("/{id}/send-progress", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReportsDecide))
		r.Put("/{id}/approve", h.approveAll)
		r.Put("/{id}/advance", h.advance)
		r.Put("/{id}/return", h.returnReport)
	})
}

// MountExpenseRoutes registers the bulk decision route that lives under the
// expenses prefix for client compatibility.
func (h *Handler) MountExpenseRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReportsDecide))
		r.Put("/{id}/status", h.decide)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := ListFilters{
		Status: ReportStatus(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	}
	items, total, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		h.logger.Error("list reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reports":    items,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	detail, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

type reportRequest struct {
	Name     string  `json:"name"`
	AreaID   int64   `json:"area_id"`
	Expenses []int64 `json:"expenses"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	var req reportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	report, err := h.service.Create(r.Context(), actor, req.Name, req.AreaID, req.Expenses)
	if err != nil {
		h.logger.Error("create report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, report)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	var req reportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.Edit(r.Context(), actor, id, req.Name, req.Expenses); err != nil {
		h.logger.Error("edit report", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	report, err := h.service.Submit(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("submit report", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type decideRequest struct {
	Status   string  `json:"status"`
	Expenses []int64 `json:"expenses"`
	Comment  string  `json:"comment"`
}

// statusActions maps the wire-level status values onto router actions.
var statusActions = map[string]Action{
	"APPROVED":  ActionApprove,
	"REJECTED":  ActionReject,
	"IN_REVIEW": ActionRequestReview,
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	reportID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	action, ok := statusActions[req.Status]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "status must be APPROVED, REJECTED or IN_REVIEW")
		return
	}
	h.withIdempotency(w, r, func() error {
		return h.service.Decide(r.Context(), actor, reportID, action, req.Expenses, req.Comment)
	}, func() {
		httpx.JSON(w, http.StatusOK, map[string]any{"report_id": reportID, "action": string(action)})
	})
}

func (h *Handler) approveAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	var report Report
	h.withIdempotency(w, r, func() error {
		var err error
		report, err = h.service.ApproveAll(r.Context(), actor, id)
		return err
	}, func() {
		httpx.JSON(w, http.StatusOK, report)
	})
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	var report Report
	h.withIdempotency(w, r, func() error {
		var err error
		report, err = h.service.Advance(r.Context(), actor, id)
		return err
	}, func() {
		httpx.JSON(w, http.StatusOK, report)
	})
}

type returnRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) returnReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid report id")
		return
	}
	var req returnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	report, err := h.service.Return(r.Context(), actor, id, req.Comment)
	if err != nil {
		h.logger.Error("return report", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// withIdempotency claims the request key before running the action and
// releases it again when the action fails, so the client may retry.
func (h *Handler) withIdempotency(w http.ResponseWriter, r *http.Request, action func() error, respond func()) {
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, ApprovalModule); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := action(); err != nil {
		if key != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), key)
		}
		h.logger.Error("approval action", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	respond()
}
