// Package discountvalidate обрабатывает проверку промокода перед оформлением.
package discountvalidate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/response"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/discount"
)

// Service определяет интерфейс проверки промокодов.
type Service interface {
	Validate(ctx context.Context, code string) (*discount.Validation, error)
}

// Handler обрабатывает запросы на проверку промокода.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить промокод
// @Description Проверяет существование, активность, срок действия и лимит применений промокода. Результат влияет только на отображаемую цену
// @Tags Discount
// @Produce  json
// @Param code path string true "Промокод"
// @Success 200 {object} response.Response "Промокод действителен"
// @Failure 404 {object} response.ErrorResponse "Промокод не найден"
// @Failure 410 {object} response.ErrorResponse "Промокод недействителен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /discount/{code} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.discount.validate"
	log := h.log.With(slog.String("op", op))

	code := chi.URLParam(r, "code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("code is required"))
		return
	}

	validation, err := h.service.Validate(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrCodeNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("discount code not found"))
		case errors.Is(err, discount.ErrCodeInactive),
			errors.Is(err, discount.ErrCodeExpired),
			errors.Is(err, discount.ErrCodeExhausted):
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("discount code is not valid"))
		default:
			log.Error("failed to validate discount code", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(validation))
}
