package main

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

const (
	CardVisa       = "Visa"
	CardMasterCard = "MasterCard"
)

type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Transaction struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	Type                string          `json:"type"` // credit or debit
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description,omitempty"`
	RecipientName       string          `json:"recipient_name,omitempty"`
	CounterpartyAccount string          `json:"counterparty_account,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

type Card struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"` // Visa or MasterCard
	Holder    string    `json:"holder"`
	Number    string    `json:"number"`
	Expiry    string    `json:"expiry"`
	CreatedAt time.Time `json:"created_at"`
}

// CardWithOwner is the admin listing view: a card joined with the name and
// email of the account that owns it.
type CardWithOwner struct {
	Card
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Sender    string    `json:"sender"` // user or admin
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TransactionRequest carries both create and update payloads. Amount is a
// pointer so an update can omit it and keep the stored value.
type TransactionRequest struct {
	Type                string           `json:"type"`
	Amount              *decimal.Decimal `json:"amount"`
	Description         string           `json:"description"`
	RecipientName       string           `json:"recipient_name"`
	CounterpartyAccount string           `json:"counterparty_account"`
}

type BalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type CardRequest struct {
	Type   string `json:"type"`
	Holder string `json:"holder"`
	Number string `json:"number"`
	Expiry string `json:"expiry"`
}

type DeleteMultipleRequest struct {
	IDs []string `json:"ids"`
}
