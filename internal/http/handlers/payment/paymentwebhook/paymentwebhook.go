// Package paymentwebhook реализует HTTP-обработчик колбэка платёжного шлюза.
//
// Шлюз присылает событие с подписью HMAC-SHA256 в заголовке X-Api-Signature.
// Активацию запускает только событие payment.succeeded: шлюз сам проводит
// платёж, сюда приходят уже подтверждённые списания.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Service описывает интерфейс активации пакета по подтверждённому платежу.
type Service interface {
	Activate(ctx context.Context, userUID, userEmail, packageID string,
		payment *models.Payment, now time.Time) (models.ActivationResult, error)
}

// Handler управляет HTTP-запросами платёжного шлюза.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, сервисом и секретом подписи.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload структура события платёжного шлюза.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`     // payment ID
		Status string `json:"status"` // статус платежа
		Amount struct {
			Value    string `json:"value"`    // сумма в строке, например "100.00"
			Currency string `json:"currency"` // валюта
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"` // user_uid, package_id, email
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Колбэк платёжного шлюза
// @Description Принимает подписанное событие платежа. Событие payment.succeeded активирует пакет из метаданных платежа, остальные события игнорируются.
// @Tags Payments
// @Accept json
// @Param X-Api-Signature header string true "HMAC-SHA256 подпись тела запроса"
// @Success 200 "Событие обработано"
// @Failure 400 "Некорректное тело запроса"
// @Failure 401 "Подпись отсутствует или неверна"
// @Failure 500 "Ошибка обработки события"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	const paymentSucceeded = "payment.succeeded"
	if strings.ToLower(payload.Event) != paymentSucceeded {
		log.Info("ignored webhook event", slog.String("event", payload.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	userUID := payload.Object.Metadata["user_uid"]
	packageID := payload.Object.Metadata["package_id"]
	if userUID == "" || packageID == "" {
		log.Error("webhook metadata missing user_uid or package_id",
			slog.String("payment_id", payload.Object.ID))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	amount, err := parseAmount(payload.Object.Amount.Value)
	if err != nil {
		log.Error("failed to parse payment amount", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payment := &models.Payment{
		PaymentID: payload.Object.ID,
		Amount:    amount,
		Currency:  payload.Object.Amount.Currency,
	}
	result, err := h.service.Activate(r.Context(), userUID, payload.Object.Metadata["email"],
		packageID, payment, time.Now().UTC())
	if err != nil {
		log.Error("failed to activate package from webhook", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !result.Activated {
		// Отказ активации по подтверждённому платежу требует ручной сверки,
		// но шлюзу отвечаем 200, чтобы он не слал событие бесконечно.
		log.Error("confirmed payment was not activated",
			slog.String("payment_id", payload.Object.ID),
			slog.String("reason", string(result.Reason)))
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event),
		slog.String("payment_id", payload.Object.ID))
	w.WriteHeader(http.StatusOK)
}

// parseAmount переводит сумму вида "100.00" в минимальные единицы валюты.
func parseAmount(value string) (int64, error) {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(amount * 100)), nil
}
