package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore is the durable Store. Amounts and balances are persisted as
// decimal strings; balance-affecting writes run inside a single SQL
// transaction so the record and the balance cannot diverge.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			balance       TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL,
			type                 TEXT NOT NULL,
			amount               TEXT NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			recipient_name       TEXT NOT NULL DEFAULT '',
			counterparty_account TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			holder     TEXT NOT NULL,
			number     TEXT NOT NULL,
			expiry     TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			sender     TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	var balance string
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &balance, &a.CreatedAt); err != nil {
		return Account{}, err
	}
	var err error
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("corrupt balance for account %s: %w", a.ID, err)
	}
	return a, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var amount string
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &amount, &tx.Description,
		&tx.RecipientName, &tx.CounterpartyAccount, &tx.CreatedAt); err != nil {
		return Transaction{}, err
	}
	var err error
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("corrupt amount for transaction %s: %w", tx.ID, err)
	}
	return tx, nil
}

const accountColumns = "id, name, email, password_hash, balance, created_at"
const transactionColumns = "id, user_id, type, amount, description, recipient_name, counterparty_account, created_at"

// querier lets the account/transaction lookups run either directly or inside
// an open SQL transaction.
type querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func getAccount(q querier, id string) (Account, error) {
	a, err := scanAccount(q.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

func getTransaction(q querier, id string) (Transaction, error) {
	tx, err := scanTransaction(q.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx, err
}

func (s *SQLiteStore) CreateAccount(a Account) error {
	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM accounts WHERE email = ?", a.Email).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("email '%s' already registered", a.Email)
	}
	_, err = s.db.Exec(
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		a.ID, a.Name, a.Email, a.PasswordHash, a.Balance.String(), a.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) GetAccount(id string) (Account, error) {
	return getAccount(s.db, id)
}

func (s *SQLiteStore) GetAccountByEmail(email string) (Account, error) {
	a, err := scanAccount(s.db.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE email = ?", email))
	if err == sql.ErrNoRows {
		return Account{}, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	return a, err
}

func (s *SQLiteStore) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query("SELECT " + accountColumns + " FROM accounts ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) SetBalance(id string, balance decimal.Decimal) (Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	a, err := getAccount(tx, id)
	if err != nil {
		return Account{}, err
	}
	a.Balance = balance
	if _, err := tx.Exec("UPDATE accounts SET balance = ? WHERE id = ?", balance.String(), id); err != nil {
		return Account{}, err
	}
	return a, tx.Commit()
}

func (s *SQLiteStore) DeleteAccount(id string) (Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	a, err := getAccount(tx, id)
	if err != nil {
		return Account{}, err
	}
	if _, err := tx.Exec("DELETE FROM accounts WHERE id = ?", id); err != nil {
		return Account{}, err
	}
	if _, err := tx.Exec("DELETE FROM transactions WHERE user_id = ?", id); err != nil {
		return Account{}, err
	}
	return a, tx.Commit()
}

func (s *SQLiteStore) DeleteAccounts(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM accounts WHERE id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM transactions WHERE user_id = ?", id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteAllAccounts() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM transactions"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ApplyTransaction(txn Transaction) (Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	a, err := getAccount(tx, txn.UserID)
	if err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		txn.ID, txn.UserID, txn.Type, txn.Amount.String(), txn.Description,
		txn.RecipientName, txn.CounterpartyAccount, txn.CreatedAt,
	); err != nil {
		return Account{}, err
	}

	a.Balance = a.Balance.Add(signedAmount(txn.Type, txn.Amount))
	if _, err := tx.Exec("UPDATE accounts SET balance = ? WHERE id = ?", a.Balance.String(), a.ID); err != nil {
		return Account{}, err
	}
	return a, tx.Commit()
}

func (s *SQLiteStore) UpdateTransaction(old, updated Transaction) (Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	if _, err := getTransaction(tx, updated.ID); err != nil {
		return Account{}, err
	}
	a, err := getAccount(tx, updated.UserID)
	if err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(
		`UPDATE transactions SET type = ?, amount = ?, description = ?,
		 recipient_name = ?, counterparty_account = ? WHERE id = ?`,
		updated.Type, updated.Amount.String(), updated.Description,
		updated.RecipientName, updated.CounterpartyAccount, updated.ID,
	); err != nil {
		return Account{}, err
	}

	// Reverse the old effect, then apply the new one.
	a.Balance = a.Balance.Sub(signedAmount(old.Type, old.Amount))
	a.Balance = a.Balance.Add(signedAmount(updated.Type, updated.Amount))
	if _, err := tx.Exec("UPDATE accounts SET balance = ? WHERE id = ?", a.Balance.String(), a.ID); err != nil {
		return Account{}, err
	}
	return a, tx.Commit()
}

func (s *SQLiteStore) RemoveTransaction(id string) (Transaction, Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Transaction{}, Account{}, err
	}
	defer tx.Rollback()

	txn, err := getTransaction(tx, id)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	a, err := getAccount(tx, txn.UserID)
	if err != nil {
		return Transaction{}, Account{}, err
	}

	if _, err := tx.Exec("DELETE FROM transactions WHERE id = ?", id); err != nil {
		return Transaction{}, Account{}, err
	}

	a.Balance = a.Balance.Sub(signedAmount(txn.Type, txn.Amount))
	if _, err := tx.Exec("UPDATE accounts SET balance = ? WHERE id = ?", a.Balance.String(), a.ID); err != nil {
		return Transaction{}, Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return Transaction{}, Account{}, err
	}
	return txn, a, nil
}

func (s *SQLiteStore) GetTransaction(id string) (Transaction, error) {
	return getTransaction(s.db, id)
}

func (s *SQLiteStore) ListTransactions(userID string) ([]Transaction, error) {
	rows, err := s.db.Query(
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *SQLiteStore) CreateCard(c Card) error {
	_, err := s.db.Exec(
		"INSERT INTO cards (id, user_id, type, holder, number, expiry, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Type, c.Holder, c.Number, c.Expiry, c.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListCards(userID string) ([]Card, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, type, holder, number, expiry, created_at FROM cards WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]Card, 0)
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &c.Holder, &c.Number, &c.Expiry, &c.CreatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *SQLiteStore) ListAllCards() ([]CardWithOwner, error) {
	// LEFT JOIN keeps orphaned cards visible with empty owner fields.
	rows, err := s.db.Query(
		`SELECT c.id, c.user_id, c.type, c.holder, c.number, c.expiry, c.created_at,
		        COALESCE(a.name, ''), COALESCE(a.email, '')
		 FROM cards c LEFT JOIN accounts a ON a.id = c.user_id
		 ORDER BY c.created_at, c.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]CardWithOwner, 0)
	for rows.Next() {
		var c CardWithOwner
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &c.Holder, &c.Number, &c.Expiry,
			&c.CreatedAt, &c.OwnerName, &c.OwnerEmail); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *SQLiteStore) DeleteCard(id string) error {
	res, err := s.db.Exec("DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteUserCard(userID, cardID string) error {
	res, err := s.db.Exec("DELETE FROM cards WHERE id = ? AND user_id = ?", cardID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(m ChatMessage) error {
	_, err := s.db.Exec(
		"INSERT INTO messages (id, email, sender, text, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.Email, m.Sender, m.Text, m.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListMessages(email string) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, email, sender, text, created_at FROM messages WHERE email = ? ORDER BY created_at, id",
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.Email, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) ListMessageEmails() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT email FROM messages ORDER BY email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (s *SQLiteStore) DeleteMessages(email string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM messages WHERE email = ?", email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteAllMessages() error {
	_, err := s.db.Exec("DELETE FROM messages")
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
