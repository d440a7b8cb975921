// Package status реализует HTTP-обработчик чтения состояния канала мессенджера.
//
// Handler возвращает локально сохранённое состояние подключения без обращения
// к мосту: актуализацией занимается фоновый опрос контроллера.
package status

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

// Handler обрабатывает HTTP-запросы состояния канала.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Контроллер подключения канала
}

// Service описывает интерфейс контроллера подключения.
type Service interface {
	Status(ctx context.Context, accountUID string) (*models.ChannelConnection, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние канала
// @Description Возвращает текущее состояние подключения канала мессенджера.
// @Tags Channel
// @Produce  json
// @Success 200 {object} map[string]any "Состояние подключения"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /channel/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.channel.status"

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

	conn, err := h.service.Status(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to read channel status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read channel status"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":       conn.Status,
		"pairing_code": conn.PairingCode,
		"profile_name": conn.ProfileName,
		"updated_at":   conn.UpdatedAt,
	}))
}
