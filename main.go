package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
)

// App holds the process-wide services and hands them to the handlers.
type App struct {
	cfg       *Config
	store     Store
	hub       *Hub
	ledger    *Ledger
	mailer    *Mailer
	adminHash string
}

func NewApp(cfg *Config, store Store) (*App, error) {
	adminHash, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}

	hub := NewHub()
	return &App{
		cfg:       cfg,
		store:     store,
		hub:       hub,
		ledger:    NewLedger(store, hub),
		mailer:    NewMailer(cfg.SMTP),
		adminHash: adminHash,
	}, nil
}

func (app *App) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/register", app.RegisterHandler).Methods("POST")
	r.HandleFunc("/login", app.LoginHandler).Methods("POST")
	r.HandleFunc("/admin/login", app.AdminLoginHandler).Methods("POST")

	r.HandleFunc("/user/messages/{email}", app.GetMessagesHandler).Methods("GET")
	r.HandleFunc("/user/{id}/balance", app.GetBalanceHandler).Methods("GET")
	r.HandleFunc("/user/{id}/transactions", app.GetTransactionsHandler).Methods("GET")
	r.HandleFunc("/user/{id}/cards", app.CreateCardHandler).Methods("POST")
	r.HandleFunc("/user/{id}/cards", app.GetCardsHandler).Methods("GET")
	r.HandleFunc("/user/{userId}/cards/{cardId}", app.DeleteUserCardHandler).Methods("DELETE")

	r.HandleFunc("/ws", app.ChatSocketHandler)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(app.adminAuthMiddleware)
	admin.HandleFunc("/users", app.ListUsersHandler).Methods("GET")
	admin.HandleFunc("/users", app.DeleteAllUsersHandler).Methods("DELETE")
	admin.HandleFunc("/users/delete-multiple", app.DeleteMultipleUsersHandler).Methods("POST")
	admin.HandleFunc("/user/{id}/balance", app.UpdateBalanceHandler).Methods("PUT")
	admin.HandleFunc("/user/{id}", app.DeleteUserHandler).Methods("DELETE")
	admin.HandleFunc("/user/{id}/transaction", app.CreateTransactionHandler).Methods("POST")
	admin.HandleFunc("/transaction/{id}", app.UpdateTransactionHandler).Methods("PUT")
	admin.HandleFunc("/transaction/{id}", app.DeleteTransactionHandler).Methods("DELETE")
	admin.HandleFunc("/cards", app.ListAllCardsHandler).Methods("GET")
	admin.HandleFunc("/cards/{cardId}", app.DeleteCardHandler).Methods("DELETE")
	admin.HandleFunc("/messages/emails", app.GetChatEmailsHandler).Methods("GET")
	admin.HandleFunc("/messages/{email}", app.GetMessagesHandler).Methods("GET")
	admin.HandleFunc("/messages/{email}", app.DeleteMessagesHandler).Methods("DELETE")
	admin.HandleFunc("/messages", app.DeleteAllMessagesHandler).Methods("DELETE")

	return r
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("Starting banking back office...")

	cfg := LoadConfig()

	var store Store
	var err error
	if cfg.DatabasePath != "" {
		store, err = NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to open database %s: %v", cfg.DatabasePath, err)
		}
		log.Printf("SQLite storage initialized at %s.", cfg.DatabasePath)
	} else {
		store = NewMemoryStore()
		log.Println("In-memory storage initialized.")
	}
	defer store.Close()

	app, err := NewApp(cfg, store)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: loggingMiddleware(recoverMiddleware(app.Routes())),
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
