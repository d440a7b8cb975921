// Package show реализует HTTP-обработчик сводки потребления квот аккаунта.
package show

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

// Handler обрабатывает HTTP-запросы сводки потребления.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Контроль квот тарифа
}

// Service описывает интерфейс выборки сводки потребления.
type Service interface {
	Summary(ctx context.Context, accountUID string) ([]models.ResourceUsage, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Потребление квот
// @Description Возвращает текущее потребление и лимиты по всем ресурсам действующего тарифа.
// @Tags Usage
// @Produce  json
// @Success 200 {object} map[string]any "Сводка потребления"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.show"

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

	summary, err := h.service.Summary(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to read usage summary", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read usage summary"))
		return
	}

	render.JSON(w, r, response.OKWithData(summary))
}
