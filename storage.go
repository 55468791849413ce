package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for the four entity kinds. The three
// transaction mutators combine the record write and the balance adjustment in
// a single atomic step and return the account as it looks afterwards, so the
// caller can publish the new balance without a second read.
type Store interface {
	CreateAccount(a Account) error
	GetAccount(id string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	ListAccounts() ([]Account, error)
	SetBalance(id string, balance decimal.Decimal) (Account, error)
	DeleteAccount(id string) (Account, error)
	DeleteAccounts(ids []string) error
	DeleteAllAccounts() error

	ApplyTransaction(tx Transaction) (Account, error)
	UpdateTransaction(old, updated Transaction) (Account, error)
	RemoveTransaction(id string) (Transaction, Account, error)
	GetTransaction(id string) (Transaction, error)
	ListTransactions(userID string) ([]Transaction, error)

	CreateCard(c Card) error
	ListCards(userID string) ([]Card, error)
	ListAllCards() ([]CardWithOwner, error)
	DeleteCard(id string) error
	DeleteUserCard(userID, cardID string) error

	CreateMessage(m ChatMessage) error
	ListMessages(email string) ([]ChatMessage, error)
	ListMessageEmails() ([]string, error)
	DeleteMessages(email string) (int64, error)
	DeleteAllMessages() error

	Close() error
}

type MemoryStore struct {
	accounts     map[string]Account       // key: AccountID
	transactions map[string]Transaction   // key: TransactionID
	cards        map[string]Card          // key: CardID
	messages     map[string][]ChatMessage // key: Email, append order
	emailIndex   map[string]string        // key: Email -> AccountID
	txIndex      map[string][]string      // key: AccountID -> []TransactionID
	cardIndex    map[string][]string      // key: AccountID -> []CardID
	mu           sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]Account),
		transactions: make(map[string]Transaction),
		cards:        make(map[string]Card),
		messages:     make(map[string][]ChatMessage),
		emailIndex:   make(map[string]string),
		txIndex:      make(map[string][]string),
		cardIndex:    make(map[string][]string),
	}
}

func (s *MemoryStore) CreateAccount(a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailIndex[a.Email]; exists {
		return fmt.Errorf("email '%s' already registered", a.Email)
	}
	s.accounts[a.ID] = a
	s.emailIndex[a.Email] = a.ID
	return nil
}

func (s *MemoryStore) GetAccount(id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) GetAccountByEmail(email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	return s.accounts[id], nil
}

func (s *MemoryStore) ListAccounts() ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (s *MemoryStore) SetBalance(id string, balance decimal.Decimal) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	a.Balance = balance
	s.accounts[id] = a
	return a, nil
}

func (s *MemoryStore) DeleteAccount(id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	s.deleteAccountLocked(a)
	return a, nil
}

func (s *MemoryStore) DeleteAccounts(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			s.deleteAccountLocked(a)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAllAccounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]Account)
	s.transactions = make(map[string]Transaction)
	s.emailIndex = make(map[string]string)
	s.txIndex = make(map[string][]string)
	return nil
}

// deleteAccountLocked removes the account and cascades to its transactions.
// Cards are intentionally left behind (the admin card listing tolerates them
// as orphans), matching single-resource card deletion not being cascaded.
func (s *MemoryStore) deleteAccountLocked(a Account) {
	for _, txID := range s.txIndex[a.ID] {
		delete(s.transactions, txID)
	}
	delete(s.txIndex, a.ID)
	delete(s.emailIndex, a.Email)
	delete(s.accounts, a.ID)
}

func (s *MemoryStore) ApplyTransaction(tx Transaction) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[tx.UserID]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", tx.UserID, ErrNotFound)
	}

	s.transactions[tx.ID] = tx
	s.txIndex[tx.UserID] = append(s.txIndex[tx.UserID], tx.ID)

	a.Balance = a.Balance.Add(signedAmount(tx.Type, tx.Amount))
	s.accounts[tx.UserID] = a
	return a, nil
}

func (s *MemoryStore) UpdateTransaction(old, updated Transaction) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[updated.ID]; !ok {
		return Account{}, fmt.Errorf("transaction %s: %w", updated.ID, ErrNotFound)
	}
	a, ok := s.accounts[updated.UserID]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", updated.UserID, ErrNotFound)
	}

	s.transactions[updated.ID] = updated

	// Reverse the old effect, then apply the new one.
	a.Balance = a.Balance.Sub(signedAmount(old.Type, old.Amount))
	a.Balance = a.Balance.Add(signedAmount(updated.Type, updated.Amount))
	s.accounts[updated.UserID] = a
	return a, nil
}

func (s *MemoryStore) RemoveTransaction(id string) (Transaction, Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, Account{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	a, ok := s.accounts[tx.UserID]
	if !ok {
		return Transaction{}, Account{}, fmt.Errorf("account %s: %w", tx.UserID, ErrNotFound)
	}

	delete(s.transactions, id)
	ids := s.txIndex[tx.UserID]
	for i, txID := range ids {
		if txID == id {
			s.txIndex[tx.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	a.Balance = a.Balance.Sub(signedAmount(tx.Type, tx.Amount))
	s.accounts[tx.UserID] = a
	return tx, a, nil
}

func (s *MemoryStore) GetTransaction(id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx, nil
}

func (s *MemoryStore) ListTransactions(userID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.txIndex[userID]
	txs := make([]Transaction, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if tx, ok := s.transactions[ids[i]]; ok {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

func (s *MemoryStore) CreateCard(c Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	s.cardIndex[c.UserID] = append(s.cardIndex[c.UserID], c.ID)
	return nil
}

func (s *MemoryStore) ListCards(userID string) ([]Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.cardIndex[userID]
	cards := make([]Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.cards[id]; ok {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

func (s *MemoryStore) ListAllCards() ([]CardWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cards := make([]CardWithOwner, 0, len(s.cards))
	for _, c := range s.cards {
		cwo := CardWithOwner{Card: c}
		// Owner fields stay empty for orphaned cards.
		if a, ok := s.accounts[c.UserID]; ok {
			cwo.OwnerName = a.Name
			cwo.OwnerEmail = a.Email
		}
		cards = append(cards, cwo)
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards, nil
}

func (s *MemoryStore) DeleteCard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	s.deleteCardLocked(c)
	return nil
}

func (s *MemoryStore) DeleteUserCard(userID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok || c.UserID != userID {
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	s.deleteCardLocked(c)
	return nil
}

func (s *MemoryStore) deleteCardLocked(c Card) {
	delete(s.cards, c.ID)
	ids := s.cardIndex[c.UserID]
	for i, id := range ids {
		if id == c.ID {
			s.cardIndex[c.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) CreateMessage(m ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.Email] = append(s.messages[m.Email], m)
	return nil
}

func (s *MemoryStore) ListMessages(email string) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]ChatMessage, len(s.messages[email]))
	copy(msgs, s.messages[email])
	return msgs, nil
}

func (s *MemoryStore) ListMessageEmails() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := make([]string, 0, len(s.messages))
	for email := range s.messages {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails, nil
}

func (s *MemoryStore) DeleteMessages(email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.messages[email]))
	delete(s.messages, email)
	return n, nil
}

func (s *MemoryStore) DeleteAllMessages() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[string][]ChatMessage)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
