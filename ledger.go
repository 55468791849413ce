package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("invalid input")

// Event names the clients listen for, addressed to the account's email key.
const (
	EventBalanceUpdated     = "balanceUpdated"
	EventTransactionAdded   = "transactionAdded"
	EventTransactionUpdated = "transactionUpdated"
	EventTransactionDeleted = "transactionDeleted"
	EventAccountDeleted     = "accountDeleted"
	EventNewMessage         = "newMessage"
)

type BalancePayload struct {
	Balance decimal.Decimal `json:"balance"`
}

// signedAmount is the effect of a transaction on its account's balance:
// positive for a credit, negative for a debit.
func signedAmount(txType string, amount decimal.Decimal) decimal.Decimal {
	if txType == TxCredit {
		return amount
	}
	return amount.Neg()
}

// Ledger keeps each account's balance equal to the net of its transactions.
// Every mutation goes through the store in one atomic step and is followed by
// a best-effort fan-out to the account's email key.
type Ledger struct {
	store Store
	hub   *Hub
}

func NewLedger(store Store, hub *Hub) *Ledger {
	return &Ledger{store: store, hub: hub}
}

func (l *Ledger) Post(userID string, req TransactionRequest) (Transaction, error) {
	if req.Type == "" || req.Amount == nil {
		return Transaction{}, fmt.Errorf("%w: type and amount are required", ErrValidation)
	}
	if req.Type != TxCredit && req.Type != TxDebit {
		return Transaction{}, fmt.Errorf("%w: type must be credit or debit", ErrValidation)
	}
	if req.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}

	tx := Transaction{
		ID:                  GenerateID(),
		UserID:              userID,
		Type:                req.Type,
		Amount:              *req.Amount,
		Description:         req.Description,
		RecipientName:       req.RecipientName,
		CounterpartyAccount: req.CounterpartyAccount,
		CreatedAt:           time.Now(),
	}
	if tx.Description == "" {
		tx.Description = "Transfer"
	}
	if tx.RecipientName == "" {
		tx.RecipientName = "N/A"
	}

	account, err := l.store.ApplyTransaction(tx)
	if err != nil {
		return Transaction{}, err
	}

	l.hub.Publish(account.Email, EventTransactionAdded, tx)
	l.hub.Publish(account.Email, EventBalanceUpdated, BalancePayload{Balance: account.Balance})
	return tx, nil
}

func (l *Ledger) Update(txID string, req TransactionRequest) (Transaction, error) {
	old, err := l.store.GetTransaction(txID)
	if err != nil {
		return Transaction{}, err
	}
	if req.Type != "" && req.Type != TxCredit && req.Type != TxDebit {
		return Transaction{}, fmt.Errorf("%w: type must be credit or debit", ErrValidation)
	}
	if req.Amount != nil && req.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}

	// Absent fields keep their stored values.
	updated := old
	if req.Type != "" {
		updated.Type = req.Type
	}
	if req.Amount != nil {
		updated.Amount = *req.Amount
	}
	if req.Description != "" {
		updated.Description = req.Description
	}
	if req.RecipientName != "" {
		updated.RecipientName = req.RecipientName
	}
	if req.CounterpartyAccount != "" {
		updated.CounterpartyAccount = req.CounterpartyAccount
	}

	account, err := l.store.UpdateTransaction(old, updated)
	if err != nil {
		return Transaction{}, err
	}

	l.hub.Publish(account.Email, EventTransactionUpdated, updated)
	l.hub.Publish(account.Email, EventBalanceUpdated, BalancePayload{Balance: account.Balance})
	return updated, nil
}

func (l *Ledger) Delete(txID string) error {
	tx, account, err := l.store.RemoveTransaction(txID)
	if err != nil {
		return err
	}

	l.hub.Publish(account.Email, EventTransactionDeleted, tx.ID)
	l.hub.Publish(account.Email, EventBalanceUpdated, BalancePayload{Balance: account.Balance})
	return nil
}

// SetBalance is the privileged admin override. It bypasses transaction
// accounting entirely, so the derived-balance invariant does not hold across
// it.
func (l *Ledger) SetBalance(userID string, balance decimal.Decimal) (Account, error) {
	account, err := l.store.SetBalance(userID, balance)
	if err != nil {
		return Account{}, err
	}

	l.hub.Publish(account.Email, EventBalanceUpdated, BalancePayload{Balance: account.Balance})
	return account, nil
}
