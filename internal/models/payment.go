package models

import "time"

// PaymentStatusCompleted — единственный статус, который принимает движок:
// платёж попадает сюда уже подтверждённым платёжным шлюзом.
const PaymentStatusCompleted = "completed"

// Payment представляет запись аудита о платеже. Записи только добавляются
// и никогда не изменяются после создания.
type Payment struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"user_uid"`
	PaymentID string    `json:"payment_id"` // Идентификатор платежа во внешнем шлюзе
	PackageID string    `json:"package_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionRecord представляет запись аудита об активации подписки.
type SubscriptionRecord struct {
	ID         string    `json:"id"`
	UserUID    string    `json:"user_uid"`
	PackageID  string    `json:"package_id"`
	Status     string    `json:"status"`
	ExpiryDate time.Time `json:"expiry_date"`
	CreatedAt  time.Time `json:"created_at"`
}
