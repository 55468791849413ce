package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsFrame is a client-to-server message on the chat socket.
type wsFrame struct {
	Event  string `json:"event"`
	Email  string `json:"email"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatSocketHandler upgrades the connection and relays between it and the
// hub: "join" subscribes the connection to an email key, "sendMessage"
// persists a chat message and broadcasts it to the key's subscribers.
func (app *App) ChatSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	log.Println("Client connected")

	sub := NewSubscriber()
	go writePump(conn, sub)

	defer func() {
		app.hub.Remove(sub)
		log.Println("Client disconnected")
	}()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Event {
		case "join":
			if frame.Email == "" {
				continue
			}
			app.hub.Join(frame.Email, sub)
			log.Printf("%s joined chat", frame.Email)

		case "sendMessage":
			if frame.Email == "" || frame.Text == "" {
				continue
			}
			sender := frame.Sender
			if sender != SenderAdmin {
				sender = SenderUser
			}
			msg := ChatMessage{
				ID:        GenerateID(),
				Email:     frame.Email,
				Sender:    sender,
				Text:      frame.Text,
				CreatedAt: time.Now(),
			}
			if err := app.store.CreateMessage(msg); err != nil {
				log.Printf("Failed to store chat message for %s: %v", frame.Email, err)
				continue
			}
			app.hub.Publish(frame.Email, EventNewMessage, msg)
		}
	}
}

// writePump serializes hub events onto the websocket. It exits when the
// subscriber's mailbox is closed and takes the connection down with it.
func writePump(conn *websocket.Conn, sub *Subscriber) {
	defer conn.Close()
	for ev := range sub.C {
		if err := conn.WriteJSON(ev); err != nil {
			for range sub.C {
			}
			return
		}
	}
}
