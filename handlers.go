package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, code int, message string) {
	log.Printf("HTTP Error %d: %s", code, message)
	respondJSON(w, code, map[string]string{"error": message})
}

// respondStoreError maps the error taxonomy onto HTTP statuses: not-found,
// validation, and everything else as a store failure.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (app *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	account := Account{
		ID:           GenerateID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now(),
	}

	if err := app.store.CreateAccount(account); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	go func() {
		subject := "Welcome to the bank"
		body := fmt.Sprintf("Hello %s,\n\nYour account has been created.", account.Name)
		if err := app.mailer.Send(account.Email, subject, body); err != nil {
			log.Printf("Failed to send registration email to %s: %v", account.Email, err)
		}
	}()

	log.Printf("Account registered: %s (ID: %s)", account.Email, account.ID)
	respondJSON(w, http.StatusCreated, account)
}

func (app *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	account, err := app.store.GetAccountByEmail(req.Email)
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	if !CheckPasswordHash(req.Password, account.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Incorrect password")
		return
	}

	log.Printf("User logged in: %s", account.Email)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"user": map[string]interface{}{
			"id":      account.ID,
			"name":    account.Name,
			"email":   account.Email,
			"balance": account.Balance,
		},
	})
}

func (app *App) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Username != app.cfg.AdminUsername {
		respondError(w, http.StatusNotFound, "Admin not found")
		return
	}
	if !CheckPasswordHash(req.Password, app.adminHash) {
		respondError(w, http.StatusUnauthorized, "Incorrect password")
		return
	}

	token, err := GenerateToken(req.Username, []byte(app.cfg.JWTSecret))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Could not generate token")
		return
	}

	log.Printf("Admin logged in: %s", req.Username)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"admin":  map[string]string{"username": req.Username},
		"token":  token,
	})
}

func (app *App) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := app.store.ListAccounts()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (app *App) UpdateBalanceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	account, err := app.ledger.SetBalance(vars["id"], req.Balance)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Balance of account %s set to %s", account.ID, account.Balance.String())
	respondJSON(w, http.StatusOK, account)
}

func (app *App) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	account, err := app.store.DeleteAccount(vars["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	app.hub.Publish(account.Email, EventAccountDeleted, nil)
	log.Printf("Account deleted: %s (%s)", account.ID, account.Email)
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (app *App) DeleteAllUsersHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.store.DeleteAllAccounts(); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "All users deleted successfully"})
}

func (app *App) DeleteMultipleUsersHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := app.store.DeleteAccounts(req.IDs); err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Deleted %d accounts", len(req.IDs))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Selected users deleted successfully"})
}

func (app *App) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	account, err := app.store.GetAccount(vars["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, BalancePayload{Balance: account.Balance})
}

func (app *App) GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	transactions, err := app.store.ListTransactions(vars["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

func (app *App) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	tx, err := app.ledger.Post(vars["id"], req)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Transaction %s (%s %s) posted to account %s", tx.ID, tx.Type, tx.Amount.String(), tx.UserID)
	respondJSON(w, http.StatusCreated, tx)
}

func (app *App) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	tx, err := app.ledger.Update(vars["id"], req)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Transaction %s updated (%s %s)", tx.ID, tx.Type, tx.Amount.String())
	respondJSON(w, http.StatusOK, tx)
}

func (app *App) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := app.ledger.Delete(vars["id"]); err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Transaction %s deleted", vars["id"])
	respondJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

func (app *App) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Type != CardVisa && req.Type != CardMasterCard {
		respondError(w, http.StatusBadRequest, "Card type must be Visa or MasterCard")
		return
	}

	holder := req.Holder
	if holder == "" {
		account, err := app.store.GetAccount(vars["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Holder is required")
			return
		}
		holder = account.Name
	}

	card := Card{
		ID:        GenerateID(),
		UserID:    vars["id"],
		Type:      req.Type,
		Holder:    holder,
		Number:    req.Number,
		Expiry:    req.Expiry,
		CreatedAt: time.Now(),
	}
	if card.Number == "" {
		card.Number = GenerateCardNumber(card.Type)
	}
	if card.Expiry == "" {
		card.Expiry = GenerateExpiry()
	}

	if err := app.store.CreateCard(card); err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("Card created for account %s", card.UserID)
	respondJSON(w, http.StatusCreated, card)
}

func (app *App) GetCardsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cards, err := app.store.ListCards(vars["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

func (app *App) DeleteUserCardHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := app.store.DeleteUserCard(vars["userId"], vars["cardId"]); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Card deleted successfully"})
}

func (app *App) ListAllCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := app.store.ListAllCards()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

func (app *App) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := app.store.DeleteCard(vars["cardId"]); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Card deleted successfully"})
}

func (app *App) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	messages, err := app.store.ListMessages(vars["email"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (app *App) GetChatEmailsHandler(w http.ResponseWriter, r *http.Request) {
	emails, err := app.store.ListMessageEmails()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, emails)
}

func (app *App) DeleteMessagesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	n, err := app.store.DeleteMessages(vars["email"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if n == 0 {
		respondError(w, http.StatusNotFound, "No messages found for this email")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Deleted all messages for %s", vars["email"]),
	})
}

func (app *App) DeleteAllMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.store.DeleteAllMessages(); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "All chats deleted successfully",
	})
}
