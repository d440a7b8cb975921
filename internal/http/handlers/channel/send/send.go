// Package send реализует HTTP-обработчик отправки сообщений через канал.
//
// Отправка одному получателю списывает квоту messages, отправка нескольким —
// квоту massMessages. Квота списывается до отправки; за недоставленные
// сообщения списание возвращается.
package send

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/leadpilot/leadpilot/internal/http/middlewarectx"
	"github.com/leadpilot/leadpilot/internal/http/response"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/channel"
	"github.com/leadpilot/leadpilot/internal/services/usage"
)

// Request — входные данные для отправки сообщения.
type Request struct {
	To   []string `json:"to" validate:"required,min=1,max=500,dive,required"`
	Text string   `json:"text" validate:"required,min=1,max=4096"`
}

// Handler обрабатывает HTTP-запросы отправки сообщений.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Контроллер подключения канала
	guard    Guard               // Контроль квот тарифа
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс контроллера отправки.
type Service interface {
	Send(ctx context.Context, accountUID string, to []string, text string) (int, error)
}

// Guard описывает интерфейс контроля квот.
type Guard interface {
	Consume(ctx context.Context, accountUID, resource string, qty int) (int, error)
	Refund(ctx context.Context, accountUID, resource string, qty int)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, guard Guard) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отправить сообщение через канал
// @Description Отправляет текст получателям через подключённый мост. Несколько получателей расходуют квоту массовых рассылок.
// @Tags Channel
// @Accept  json
// @Produce  json
// @Param request body Request true "Получатели и текст сообщения"
// @Success 200 {object} map[string]any "Количество отправленных сообщений"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Канал не подключен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Квота тарифа исчерпана"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /channel/send [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.channel.send"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
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

	resource := models.ResourceMessages
	if len(req.To) > 1 {
		resource = models.ResourceMassMessages
	}

	if _, err := h.guard.Consume(r.Context(), accountUID, resource, len(req.To)); err != nil {
		var limitErr *usage.LimitExceededError
		if errors.As(err, &limitErr) {
			log.Error("plan quota exceeded", sl.Err(err))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error(limitErr.Error()))
			return
		}
		log.Error("failed to consume quota", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	sent, err := h.service.Send(r.Context(), accountUID, req.To, req.Text)
	if sent < len(req.To) {
		h.guard.Refund(r.Context(), accountUID, resource, len(req.To)-sent)
	}
	if err != nil {
		if errors.Is(err, channel.ErrNotConnected) || errors.Is(err, channel.ErrPending) {
			log.Error("channel is not ready", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to send messages", sl.Err(err),
			slog.Int("sent", sent), slog.Int("requested", len(req.To)))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to send messages"))
		return
	}

	log.Info("messages sent", slog.Int("sent", sent))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"sent":     sent,
		"resource": resource,
	}))
}
