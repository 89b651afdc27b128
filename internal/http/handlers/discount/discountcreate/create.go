// Package discountcreate обрабатывает создание промокодов администратором.
package discountcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/response"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/discount"
)

// Service определяет интерфейс создания промокодов.
type Service interface {
	Create(ctx context.Context, req models.DummyDiscountCode) (*models.DiscountCode, error)
}

// Handler обрабатывает запросы на создание промокода.
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
// @Summary Создать промокод
// @Description Создает новый промокод. Промокод влияет только на отображаемую цену
// @Tags Discount
// @Accept  json
// @Produce  json
// @Param request body models.DummyDiscountCode true "Данные промокода"
// @Success 200 {object} response.Response "Промокод создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или дата"
// @Failure 409 {object} response.ErrorResponse "Промокод уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/discount [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.discount.create"
	log := h.log.With(slog.String("op", op))

	var req models.DummyDiscountCode
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

	code, err := h.service.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrInvalidExpiration):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid expiration date"))
		case errors.Is(err, discount.ErrCodeAlreadyExists):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("discount code already exists"))
		default:
			log.Error("failed to create discount code", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("discount code created", slog.String("code", code.Code))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"code": code.Code}))
}
