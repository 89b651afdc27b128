// Package adminauditlist отдает записи журнала аудита административных действий.
package adminauditlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/response"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// AuditRepository определяет интерфейс чтения журнала аудита.
type AuditRepository interface {
	ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
}

// Handler обрабатывает запросы на чтение журнала аудита.
type Handler struct {
	log  *slog.Logger // Логгер для записи информации и ошибок
	repo AuditRepository
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo AuditRepository) *Handler {
	return &Handler{
		log:  log,
		repo: repo,
	}
}

// ServeHTTP godoc
// @Summary Получить журнал аудита
// @Description Возвращает записи журнала административных действий с пагинацией, новые записи первыми
// @Tags Admin
// @Produce  json
// @Param limit query int false "Максимум записей (по умолчанию 20)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} response.Response "Список записей"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/audit [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.auditlist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, err := h.repo.ListAuditEntries(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list audit entries", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list audit entries"))
		return
	}

	log.Info("audit entries listed", slog.Int("count", len(entries)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"count":   len(entries),
		"entries": entries,
	}))
}
