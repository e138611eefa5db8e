package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/expensa-app/expensa/internal/platform/httpx"
	"github.com/expensa-app/expensa/internal/rbac"
)

// Handler exposes user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	importer *Importer
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, importer *Importer, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, importer: importer, rbac: rbacMW}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermUsersManage))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/import", h.bulkImport)
	})
}

type userView struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	CompanyID   int64  `json:"company_id"`
	GlobalOrder *int   `json:"global_order,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func toView(u User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		CompanyID:   u.CompanyID,
		GlobalOrder: u.GlobalOrder,
		IsActive:    u.IsActive,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	users, err := h.service.ListUsers(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toView(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

type createUserRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	CompanyID   int64  `json:"company_id"`
	GlobalOrder *int   `json:"global_order"`
	Password    string `json:"password"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Email:       req.Email,
		Name:        req.Name,
		Role:        rbac.Role(req.Role),
		CompanyID:   req.CompanyID,
		GlobalOrder: req.GlobalOrder,
		Password:    req.Password,
	})
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(user))
}

type updateUserRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	GlobalOrder *int   `json:"global_order"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.UpdateUser(r.Context(), id, UpdateUserInput{
		Name:        req.Name,
		Role:        rbac.Role(req.Role),
		GlobalOrder: req.GlobalOrder,
		IsActive:    req.IsActive,
	}); err != nil {
		h.logger.Error("update user", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id})
}

func (h *Handler) bulkImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "expected multipart upload")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing file field")
		return
	}
	defer file.Close()

	result, err := h.importer.ImportWorkbook(r.Context(), file)
	if err != nil {
		h.logger.Error("import users", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Import Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
