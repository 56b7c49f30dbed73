// Package check реализует HTTP-обработчик проверки права на действие.
//
// Handler извлекает uid пользователя из контекста, классифицирует аккаунт
// через сервис ограничений и возвращает вердикт без изменения счётчиков.
package check

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на проверку права.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики проверки квот
}

// Service описывает интерфейс бизнес-логики проверки права на действие.
type Service interface {
	Evaluate(ctx context.Context, userUID string, action models.Action, now time.Time) (models.EligibilityResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить право на действие
// @Description Классифицирует аккаунт текущего пользователя и возвращает вердикт. Счётчики квот не изменяются.
// @Tags Entitlements
// @Produce json
// @Param action query string true "Вид действия" Enums(post, prompt, group)
// @Success 200 {object} response.Response{data=models.EligibilityResult} "Вердикт проверки"
// @Failure 400 {object} response.ErrorResponse "Неизвестный вид действия"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при проверке"
// @Security BearerAuth
// @Router /entitlements/check [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.check"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	action := models.Action(r.URL.Query().Get("action"))
	switch action {
	case models.ActionPost, models.ActionPrompt, models.ActionGroup:
	default:
		log.Error("unknown action", slog.String("action", string(action)))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown action"))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.Evaluate(r.Context(), userUID, action, time.Now().UTC())
	if err != nil {
		log.Error("failed to evaluate entitlement", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not evaluate entitlement"))
		return
	}

	log.Info("entitlement evaluated",
		slog.String("user_uid", userUID),
		slog.String("action", string(action)),
		slog.Bool("eligible", result.Eligible))
	render.JSON(w, r, response.StatusOKWithData(result))
}
