// Package consume реализует HTTP-обработчик списания квоты.
//
// Handler принимает JSON-запрос с видом действия и необязательным action_id,
// валидирует его и атомарно списывает единицу квоты через сервис ограничений.
package consume

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на списание квоты.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики списания квот
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики списания квоты.
type Service interface {
	Consume(ctx context.Context, userUID string, action models.Action, actionID string, now time.Time) (models.ConsumeResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Списать единицу квоты
// @Description Проверяет право на действие и атомарно уменьшает соответствующий счётчик. Повторный запрос с тем же action_id возвращает кешированный результат.
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param request body models.DummyConsumeRequest true "Действие и идентификатор запроса"
// @Success 200 {object} response.Response{data=models.ConsumeResult} "Результат списания"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при списании"
// @Security BearerAuth
// @Router /entitlements/consume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.consume"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.Consume(r.Context(), userUID, models.Action(req.Action), req.ActionID, time.Now().UTC())
	if err != nil {
		log.Error("failed to consume quota", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not consume quota"))
		return
	}

	log.Info("quota consume processed",
		slog.String("user_uid", userUID),
		slog.String("action", req.Action),
		slog.Bool("consumed", result.Consumed),
		slog.Bool("deduplicated", result.Deduplicated))
	render.JSON(w, r, response.StatusOKWithData(result))
}
