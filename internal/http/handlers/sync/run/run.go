// Package run реализует HTTP-обработчик запуска синхронизации лидов.
//
// Handler принимает URL источника, запускает прогон сверки и возвращает
// его сводку. Параллельный прогон по тому же аккаунту отклоняется.
package run

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
	"github.com/leadpilot/leadpilot/internal/leadsource"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
	syncsvc "github.com/leadpilot/leadpilot/internal/services/sync"
)

// Handler обрабатывает HTTP-запросы запуска синхронизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис сверки лидов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс сервиса сверки.
type Service interface {
	Run(ctx context.Context, accountUID, sourceURL string) (*models.SyncRun, error)
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
// @Summary Запустить синхронизацию лидов
// @Description Загружает лиды из внешнего вебхука и сверяет их с хранилищем. Возвращает сводку прогона.
// @Tags Sync
// @Accept  json
// @Produce  json
// @Param request body models.DummySyncRequest true "URL источника лидов"
// @Success 200 {object} map[string]any "Сводка прогона"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Прогон уже идёт"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Источник недоступен или вернул некорректный ответ"
// @Failure 504 {object} response.ErrorResponse "Источник не ответил вовремя"
// @Security BearerAuth
// @Router /sync/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sync.run"

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

	var req models.DummySyncRequest
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

	run, err := h.service.Run(r.Context(), accountUID, req.SourceURL)
	if err != nil {
		switch {
		case errors.Is(err, syncsvc.ErrRunInProgress):
			log.Error("sync already running", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("sync is already running"))
		case errors.Is(err, syncsvc.ErrTimeout):
			log.Error("lead source timed out", sl.Err(err))
			w.WriteHeader(http.StatusGatewayTimeout)
			render.JSON(w, r, response.Error("lead source timed out"))
		case errors.Is(err, leadsource.ErrBadResponse):
			log.Error("lead source returned malformed payload", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("lead source returned malformed payload"))
		default:
			var statusErr *leadsource.UpstreamStatusError
			if errors.As(err, &statusErr) {
				log.Error("lead source rejected request", sl.Err(err))
				w.WriteHeader(http.StatusBadGateway)
				render.JSON(w, r, response.Error("lead source rejected request"))
				return
			}
			log.Error("sync failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("sync failed"))
		}
		return
	}

	log.Info("sync finished",
		slog.Int("added", run.Added),
		slog.Int("skipped", run.Skipped),
		slog.Int("failed", run.Failed))
	render.JSON(w, r, response.OKWithData(run))
}
