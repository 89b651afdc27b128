// Package adminoverride обрабатывает установку и удаление серверных
// переопределений доступа. Переопределения хранятся на сервере и видны
// только администраторам.
package adminoverride

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/response"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/access"
)

// SetOverrideRequestApp представляет запрос на установку переопределения доступа.
type SetOverrideRequestApp struct {
	TargetEmail  string `json:"target_email" validate:"required,email"`
	FullUnlock   bool   `json:"full_unlock,omitempty"`
	SimulateTier string `json:"simulate_tier,omitempty"`
}

// ClearOverrideRequestApp представляет запрос на удаление переопределения доступа.
type ClearOverrideRequestApp struct {
	TargetEmail string `json:"target_email" validate:"required,email"`
}

// Service определяет интерфейс управления переопределениями доступа.
type Service interface {
	SetOverride(email string, override models.AccessOverride) error
	ClearOverride(email string) error
}

// SetHandler обрабатывает установку переопределения доступа.
type SetHandler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// NewSet создает новый экземпляр SetHandler.
func NewSet(log *slog.Logger, service Service) *SetHandler {
	return &SetHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Установить переопределение доступа
// @Description Сохраняет серверное переопределение доступа для пользователя (полный доступ или симуляция уровня)
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body SetOverrideRequestApp true "Email пользователя и переопределение"
// @Success 200 {object} response.Response "Переопределение сохранено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или переопределение"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/override [post]
// @Security BearerAuth
func (h *SetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.override.set"
	log := h.log.With(slog.String("op", op))

	var req SetOverrideRequestApp
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

	err := h.service.SetOverride(req.TargetEmail, models.AccessOverride{
		FullUnlock:   req.FullUnlock,
		SimulateTier: req.SimulateTier,
	})
	if err != nil {
		if errors.Is(err, access.ErrInvalidOverride) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid access override"))
			return
		}
		log.Error("failed to set access override", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("access override set", slog.String("target_email", req.TargetEmail))
	render.JSON(w, r, response.StatusOKWithData(nil))
}

// ClearHandler обрабатывает удаление переопределения доступа.
type ClearHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewClear создает новый экземпляр ClearHandler.
func NewClear(log *slog.Logger, service Service) *ClearHandler {
	return &ClearHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Удалить переопределение доступа
// @Description Удаляет серверное переопределение доступа пользователя
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body ClearOverrideRequestApp true "Email пользователя"
// @Success 200 {object} response.Response "Переопределение удалено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/override [delete]
// @Security BearerAuth
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.override.clear"
	log := h.log.With(slog.String("op", op))

	var req ClearOverrideRequestApp
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

	if err := h.service.ClearOverride(req.TargetEmail); err != nil {
		log.Error("failed to clear access override", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("access override cleared", slog.String("target_email", req.TargetEmail))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
