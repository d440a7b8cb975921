// Package disconnect реализует HTTP-обработчик отключения канала мессенджера.
package disconnect

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

// Handler обрабатывает HTTP-запросы отключения канала.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Контроллер подключения канала
}

// Service описывает интерфейс контроллера подключения.
type Service interface {
	Disconnect(ctx context.Context, accountUID string) (*models.ChannelConnection, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отключить канал
// @Description Разрывает привязку канала. Локальное состояние сбрасывается даже при недоступном мосте.
// @Tags Channel
// @Produce  json
// @Success 200 {object} map[string]any "Состояние после отключения"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /channel/disconnect [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.channel.disconnect"

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

	conn, err := h.service.Disconnect(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to disconnect channel", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to disconnect channel"))
		return
	}

	log.Info("channel disconnected", slog.String("account_uid", accountUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": conn.Status,
	}))
}
