// Package adminmanualsub обрабатывает ручную выдачу и отзыв подписки администратором.
package adminmanualsub

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

// Service определяет интерфейс административного шлюза для ручных подписок.
type Service interface {
	ManualSubscription(ctx context.Context, caller models.AuthUser, req admin.ManualSubscriptionRequest) error
}

// Handler обрабатывает запросы на ручную выдачу и отзыв подписки.
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
// @Summary Ручная подписка
// @Description Выдает или отзывает подписку вручную, минуя платёжного провайдера
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body admin.ManualSubscriptionRequest true "Email пользователя, grant и уровень"
// @Success 200 {object} response.Response "Операция выполнена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или уровень"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Запись не удалась"
// @Router /admin/subscription [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.manualsub"
	log := h.log.With(slog.String("op", op))

	var req admin.ManualSubscriptionRequest
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

	if err := h.service.ManualSubscription(r.Context(), caller, req); err != nil {
		switch {
		case errors.Is(err, admin.ErrForbidden):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
		case errors.Is(err, admin.ErrInvalidTier):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid tier"))
		default:
			// Запись не удалась после повторных попыток: результат честный
			log.Error("manual subscription failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update entitlement"))
		}
		return
	}

	log.Info("manual subscription processed",
		slog.String("target_email", req.TargetEmail),
		slog.Bool("grant", req.Grant))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
