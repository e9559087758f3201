package credits

import "github.com/google/uuid"

type BalanceResponse struct {
	UserID       uuid.UUID           `json:"user_id"`
	Balance      float64             `json:"balance"`
	Transactions []CreditTransaction `json:"transactions"`
}
