// Package create реализует HTTP-обработчик ручного создания лида.
//
// Handler принимает JSON с контактом, валидирует его и делегирует создание
// сервису лидов, который проверяет дедупликацию и квоту тарифа.
package create

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
	"github.com/leadpilot/leadpilot/internal/services/lead"
	"github.com/leadpilot/leadpilot/internal/services/usage"
)

// Handler обрабатывает HTTP-запросы создания лида.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики лидов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания лида.
type Service interface {
	Create(ctx context.Context, accountUID string, dto models.DummyLead) (*models.Lead, error)
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
// @Summary Создать лид
// @Description Создает лид вручную. Требуется телефон или почта; дубликат контакта отклоняется.
// @Tags Leads
// @Accept  json
// @Produce  json
// @Param request body models.DummyLead true "Данные нового лида"
// @Success 200 {object} map[string]any "Созданный лид"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или нет контакта"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Лид с таким контактом уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Квота тарифа исчерпана"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /leads [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lead.create"

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

	var req models.DummyLead
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

	created, err := h.service.Create(r.Context(), accountUID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoContact):
			log.Error("lead has no contact", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("lead must have a phone or an email"))
		case errors.Is(err, lead.ErrDuplicate):
			log.Error("duplicate lead", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("lead with this contact already exists"))
		default:
			var limitErr *usage.LimitExceededError
			if errors.As(err, &limitErr) {
				log.Error("plan quota exceeded", sl.Err(err))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error(limitErr.Error()))
				return
			}
			log.Error("failed to create lead", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to create lead"))
		}
		return
	}

	log.Info("lead created", slog.Int("lead_id", created.ID))
	render.JSON(w, r, response.OKWithData(created))
}
