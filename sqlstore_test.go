package main

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSQLAccount(t *testing.T, store *SQLiteStore, email string) Account {
	t.Helper()
	a := Account{
		ID:           GenerateID(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "x",
		Balance:      decimal.Zero,
		CreatedAt:    time.Now(),
	}
	if err := store.CreateAccount(a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func TestSQLiteAccountRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	a := seedSQLAccount(t, store, "a@x.com")

	got, err := store.GetAccount(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "a@x.com" || !got.Balance.Equal(decimal.Zero) {
		t.Fatalf("got %+v", got)
	}

	byEmail, err := store.GetAccountByEmail("a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail.ID != a.ID {
		t.Fatalf("id=%s want=%s", byEmail.ID, a.ID)
	}

	if err := store.CreateAccount(Account{ID: GenerateID(), Email: "a@x.com", Balance: decimal.Zero, CreatedAt: time.Now()}); err == nil {
		t.Fatal("duplicate email accepted")
	}
}

func TestSQLiteLedgerOperations(t *testing.T) {
	store := newTestSQLiteStore(t)
	a := seedSQLAccount(t, store, "a@x.com")

	credit := Transaction{ID: GenerateID(), UserID: a.ID, Type: TxCredit, Amount: decimal.NewFromInt(100), CreatedAt: time.Now()}
	account, err := store.ApplyTransaction(credit)
	if err != nil {
		t.Fatal(err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance=%s want=100", account.Balance)
	}

	debit := credit
	debit.Type = TxDebit
	debit.Amount = decimal.NewFromInt(30)
	account, err = store.UpdateTransaction(credit, debit)
	if err != nil {
		t.Fatal(err)
	}
	// Reverse +100, apply -30.
	if !account.Balance.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("balance=%s want=-30", account.Balance)
	}

	gone, account, err := store.RemoveTransaction(credit.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gone.Type != TxDebit || !account.Balance.Equal(decimal.Zero) {
		t.Fatalf("tx=%+v balance=%s", gone, account.Balance)
	}

	if _, _, err := store.RemoveTransaction(credit.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSQLiteApplyToUnknownAccount(t *testing.T) {
	store := newTestSQLiteStore(t)

	tx := Transaction{ID: GenerateID(), UserID: "missing", Type: TxCredit, Amount: decimal.NewFromInt(10), CreatedAt: time.Now()}
	if _, err := store.ApplyTransaction(tx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	// The insert rolled back with the failed lookup.
	if _, err := store.GetTransaction(tx.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan transaction persisted: %v", err)
	}
}

func TestSQLiteDeleteAccountCascades(t *testing.T) {
	store := newTestSQLiteStore(t)
	a := seedSQLAccount(t, store, "a@x.com")

	tx := Transaction{ID: GenerateID(), UserID: a.ID, Type: TxCredit, Amount: decimal.NewFromInt(10), CreatedAt: time.Now()}
	if _, err := store.ApplyTransaction(tx); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.DeleteAccount(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.Email != "a@x.com" {
		t.Fatalf("deleted=%+v", deleted)
	}
	txs, err := store.ListTransactions(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("cascade left %d transactions", len(txs))
	}
}

func TestSQLiteCardOwnerJoin(t *testing.T) {
	store := newTestSQLiteStore(t)
	a := seedSQLAccount(t, store, "a@x.com")
	b := seedSQLAccount(t, store, "b@x.com")

	owned := Card{ID: GenerateID(), UserID: a.ID, Type: CardVisa, Holder: "A", Number: "4111", Expiry: "01/30", CreatedAt: time.Now()}
	orphan := Card{ID: GenerateID(), UserID: b.ID, Type: CardMasterCard, Holder: "B", Number: "5111", Expiry: "02/29", CreatedAt: time.Now().Add(time.Second)}
	for _, c := range []Card{owned, orphan} {
		if err := store.CreateCard(c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.DeleteAccount(b.ID); err != nil {
		t.Fatal(err)
	}

	cards, err := store.ListAllCards()
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Fatalf("got %d cards", len(cards))
	}
	if cards[0].OwnerEmail != "a@x.com" || cards[0].OwnerName != "Test User" {
		t.Fatalf("owner join wrong: %+v", cards[0])
	}
	if cards[1].OwnerEmail != "" {
		t.Fatalf("orphan has owner: %+v", cards[1])
	}
}

func TestSQLiteMessages(t *testing.T) {
	store := newTestSQLiteStore(t)

	base := time.Now()
	for i, text := range []string{"first", "second"} {
		m := ChatMessage{ID: GenerateID(), Email: "a@x.com", Sender: SenderUser, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.CreateMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := store.ListMessages("a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Text != "first" {
		t.Fatalf("msgs=%+v", msgs)
	}

	n, err := store.DeleteMessages("a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("deleted=%d want=2", n)
	}
}
