// Package connect реализует HTTP-обработчик начала привязки канала мессенджера.
//
// Handler запрашивает у моста код привязки и возвращает его вместе с текущим
// состоянием подключения. Если канал уже подключён, повторная привязка не
// запускается.
package connect

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/leadpilot/leadpilot/internal/bridge"
	"github.com/leadpilot/leadpilot/internal/http/middlewarectx"
	"github.com/leadpilot/leadpilot/internal/http/response"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
)

// Handler обрабатывает HTTP-запросы начала привязки канала.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Контроллер подключения канала
}

// Service описывает интерфейс контроллера подключения.
type Service interface {
	Connect(ctx context.Context, accountUID string) (*models.ChannelConnection, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Начать привязку канала
// @Description Запрашивает у моста код привязки для текущего аккаунта.
// @Tags Channel
// @Produce  json
// @Success 200 {object} map[string]any "Состояние подключения и код привязки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 502 {object} response.ErrorResponse "Мост недоступен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /channel/connect [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.channel.connect"

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

	conn, err := h.service.Connect(r.Context(), accountUID)
	if err != nil {
		if errors.Is(err, bridge.ErrUnavailable) {
			log.Error("bridge is unavailable", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("messaging bridge is unavailable"))
			return
		}
		log.Error("failed to start pairing", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to start pairing"))
		return
	}

	log.Info("pairing started", slog.String("status", conn.Status))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":       conn.Status,
		"pairing_code": conn.PairingCode,
		"profile_name": conn.ProfileName,
	}))
}
