package main

import (
	"log"
	"sync"
)

type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"data,omitempty"`
}

const subscriberBuffer = 32

// Subscriber is one live connection's mailbox. Events arrive on C in publish
// order; the channel is closed when the subscriber is removed from the hub.
type Subscriber struct {
	C chan Event
}

func NewSubscriber() *Subscriber {
	return &Subscriber{C: make(chan Event, subscriberBuffer)}
}

// Hub fans events out to whichever subscribers have joined a key. Delivery is
// best-effort: nothing is queued for absent subscribers, and a subscriber
// that stops draining its mailbox loses events rather than blocking the
// publisher.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{} // key: account email
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Join associates the subscriber with a key. A subscriber may join several
// keys and a key may have several subscribers.
func (h *Hub) Join(key string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[key]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[key] = room
	}
	room[sub] = struct{}{}
}

// Publish delivers the event to every subscriber currently joined to key.
func (h *Hub) Publish(key, name string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[key] {
		select {
		case sub.C <- Event{Name: name, Payload: payload}:
		default:
			log.Printf("Dropping %s event for %s: subscriber too slow", name, key)
		}
	}
}

// Remove discards all of the subscriber's associations and closes its
// mailbox. Called when the underlying connection terminates; there is no
// explicit leave.
func (h *Hub) Remove(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, room := range h.rooms {
		if _, ok := room[sub]; ok {
			delete(room, sub)
			if len(room) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	close(sub.C)
}
