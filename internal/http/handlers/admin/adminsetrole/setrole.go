// Package adminsetrole обрабатывает смену роли пользователя администратором.
package adminsetrole

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/response"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/admin"
)

// Service определяет интерфейс административного шлюза для смены роли.
type Service interface {
	SetRole(ctx context.Context, caller models.AuthUser, req admin.SetRoleRequest) error
}

// Handler обрабатывает запросы на смену роли.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сменить роль пользователя
// @Description Меняет роль пользователя во внешнем провайдере аутентификации. Роль tester дает и забирает ручную подписку
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body admin.SetRoleRequest true "Email пользователя и новая роль"
// @Success 200 {object} response.Response "Роль изменена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или роль"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/role [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.setrole"
	log := h.log.With(slog.String("op", op))

	var req admin.SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	caller, ok := middlewarectx.AuthUserFromContext(r.Context())
	if !ok {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.SetRole(r.Context(), caller, req); err != nil {
		switch {
		case errors.Is(err, admin.ErrForbidden):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
		case errors.Is(err, admin.ErrInvalidRole):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid role"))
		case errors.Is(err, admin.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to set role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("role changed",
		slog.String("target_email", req.TargetEmail),
		slog.String("role", req.Role))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
