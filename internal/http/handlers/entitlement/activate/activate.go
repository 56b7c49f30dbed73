// Package activate реализует HTTP-обработчик активации тарифного пакета.
//
// Handler принимает JSON-запрос с идентификатором пакета и, для платных
// пакетов, данными уже подтверждённого платежа. Запрос без payment_id
// трактуется как заявка на бесплатный (пробный) пакет.
package activate

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

// Handler управляет HTTP-запросами на активацию пакета.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики активации
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики активации пакета.
type Service interface {
	Activate(ctx context.Context, userUID, userEmail, packageID string,
		payment *models.Payment, now time.Time) (models.ActivationResult, error)
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
// @Summary Активировать тарифный пакет
// @Description Привязывает пакет к аккаунту текущего пользователя, наполняет квоты и устанавливает срок действия. Без payment_id активируется пробный пакет.
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param request body models.DummyActivateRequest true "Пакет и данные платежа"
// @Success 200 {object} response.Response{data=models.ActivationResult} "Результат активации"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при активации"
// @Security BearerAuth
// @Router /entitlements/activate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.activate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyActivateRequest
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
	userEmail, _ := r.Context().Value(middlewarectx.Email).(string)

	var payment *models.Payment
	if req.PaymentID != "" {
		payment = &models.Payment{
			PaymentID: req.PaymentID,
			Amount:    req.Amount,
			Currency:  req.Currency,
		}
	}

	result, err := h.service.Activate(r.Context(), userUID, userEmail, req.PackageID, payment, time.Now().UTC())
	if err != nil {
		log.Error("failed to activate package", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not activate package"))
		return
	}

	log.Info("activation processed",
		slog.String("user_uid", userUID),
		slog.String("package_id", req.PackageID),
		slog.Bool("activated", result.Activated))
	render.JSON(w, r, response.StatusOKWithData(result))
}
