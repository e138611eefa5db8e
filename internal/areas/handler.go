package areas

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/expensa-app/expensa/internal/platform/httpx"
	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

// Handler exposes area and approver-chain endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers area routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermAreasView, rbac.PermAreasManage))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/approvers", h.listApprovers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAreasManage))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/approvers", h.addApprover)
		r.Delete("/{id}/approvers/{userID}", h.removeApprover)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	companyID := actor.CompanyID
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company_id")
			return
		}
		companyID = parsed
	}
	areas, err := h.service.ListAreas(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list areas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"areas": areas})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid area id")
		return
	}
	area, err := h.service.GetArea(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, area)
}

type areaRequest struct {
	Name      string `json:"name"`
	CompanyID int64  `json:"company_id"`
	Status    string `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req areaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	companyID := req.CompanyID
	if companyID == 0 {
		companyID = actor.CompanyID
	}
	area, err := h.service.CreateArea(r.Context(), req.Name, companyID, actor.ID)
	if err != nil {
		h.logger.Error("create area", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, area)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid area id")
		return
	}
	var req areaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.UpdateArea(r.Context(), id, req.Name, AreaStatus(req.Status), actor.ID); err != nil {
		h.logger.Error("update area", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id})
}

type approverRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *Handler) addApprover(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid area id")
		return
	}
	var req approverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.UserID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "user_id is required")
		return
	}
	slot, err := h.service.AddApprover(r.Context(), id, req.UserID, actor.ID)
	if err != nil {
		h.logger.Error("add approver", slog.Any("error", err), slog.Int64("area_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slot)
}

func (h *Handler) removeApprover(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	areaID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid area id")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.RemoveApprover(r.Context(), areaID, userID, actor.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": userID})
}

func (h *Handler) listApprovers(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid area id")
		return
	}
	chain, err := h.service.ListApprovers(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvers": chain})
}
