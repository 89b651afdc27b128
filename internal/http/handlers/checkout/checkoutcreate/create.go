// Package checkoutcreate обрабатывает создание сессии оплаты.
package checkoutcreate

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
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/checkout"
)

// CreateCheckoutRequestApp представляет запрос на создание сессии оплаты.
type CreateCheckoutRequestApp struct {
	Tier       string `json:"tier" validate:"required"`
	Billing    string `json:"billing,omitempty" validate:"omitempty,oneof=monthly annual"`
	AccessPass bool   `json:"access_pass,omitempty"`
}

// Service определяет интерфейс создания сессий оплаты.
type Service interface {
	CreateSession(ctx context.Context, user models.AuthUser, req checkout.Request) (string, error)
}

// Handler обрабатывает запросы на создание сессии оплаты.
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
// @Summary Создать сессию оплаты
// @Description Создает сессию оплаты у платёжного провайдера и возвращает URL для перенаправления
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body CreateCheckoutRequestApp true "Параметры покупки"
// @Success 200 {object} response.Response "URL сессии оплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или уровень"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера или провайдера"
// @Router /checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.create"
	log := h.log.With(slog.String("op", op))

	var req CreateCheckoutRequestApp
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

	user, ok := middlewarectx.AuthUserFromContext(r.Context())
	if !ok {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	url, err := h.service.CreateSession(r.Context(), user, checkout.Request{
		Tier:       req.Tier,
		Billing:    req.Billing,
		AccessPass: req.AccessPass,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidTier):
			log.Error("invalid tier requested", slog.String("tier", req.Tier))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid tier"))
		case errors.Is(err, checkout.ErrInvalidPriceConfiguration):
			log.Error("price configuration error", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("price configuration error"))
		default:
			log.Error("failed to create checkout session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("checkout session created", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"checkout_url": url}))
}
