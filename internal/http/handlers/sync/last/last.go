// Package last реализует HTTP-обработчик чтения сводки последнего прогона синхронизации.
package last

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/leadpilot/leadpilot/internal/http/middlewarectx"
	"github.com/leadpilot/leadpilot/internal/http/response"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
)

// Handler обрабатывает HTTP-запросы чтения сводки прогона.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис сверки лидов
}

// Service описывает интерфейс выборки последнего прогона.
type Service interface {
	LastRun(ctx context.Context, accountUID string) (*models.SyncRun, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Последний прогон синхронизации
// @Description Возвращает сводку последнего прогона синхронизации аккаунта.
// @Tags Sync
// @Produce  json
// @Success 200 {object} map[string]any "Сводка прогона или null, если прогонов не было"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /sync/last [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sync.last"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountUID, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || accountUID == "" {
		log.Error("account uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	run, err := h.service.LastRun(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to read last sync run", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read last sync run"))
		return
	}

	render.JSON(w, r, response.OKWithData(run))
}
