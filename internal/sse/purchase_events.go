// Package sse broadcasts live ticket purchases to connected dashboard
// clients, keyed by club and by event.
package sse

import (
	"context"
	"sync"

	"ms-clubs/internal/models"
)

// PurchaseEvent is one live purchase or cancellation pushed to subscribers.
type PurchaseEvent struct {
	Kind   string        `json:"kind"`
	ClubID string        `json:"club_id"`
	Ticket models.Ticket `json:"ticket"`
}

const (
	KindPurchased = "purchased"
	KindCancelled = "cancelled"
)

// PurchaseEmitter manages subscriber channels for live purchase events.
type PurchaseEmitter struct {
	clubClients     map[string][]chan PurchaseEvent
	clubClientMutex sync.RWMutex

	eventClients     map[string][]chan PurchaseEvent
	eventClientMutex sync.RWMutex
}

func NewPurchaseEmitter() *PurchaseEmitter {
	return &PurchaseEmitter{
		clubClients:  make(map[string][]chan PurchaseEvent),
		eventClients: make(map[string][]chan PurchaseEvent),
	}
}

// SubscribeToClub adds a client for every purchase in the club's events.
// The channel closes when ctx is done.
func (e *PurchaseEmitter) SubscribeToClub(ctx context.Context, clubID string) chan PurchaseEvent {
	clientChan := make(chan PurchaseEvent, 10)

	e.clubClientMutex.Lock()
	e.clubClients[clubID] = append(e.clubClients[clubID], clientChan)
	e.clubClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClubClient(clubID, clientChan)
	}()

	return clientChan
}

// SubscribeToEvent adds a client for one event's purchases.
func (e *PurchaseEmitter) SubscribeToEvent(ctx context.Context, eventID string) chan PurchaseEvent {
	clientChan := make(chan PurchaseEvent, 10)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts one purchase event. Sends are non-blocking so a slow
// client never stalls the purchase path.
func (e *PurchaseEmitter) Emit(ev PurchaseEvent) {
	e.clubClientMutex.RLock()
	clubClients := e.clubClients[ev.ClubID]
	e.clubClientMutex.RUnlock()

	for _, clientChan := range clubClients {
		select {
		case clientChan <- ev:
		default:
		}
	}

	e.eventClientMutex.RLock()
	eventClients := e.eventClients[ev.Ticket.EventID]
	e.eventClientMutex.RUnlock()

	for _, clientChan := range eventClients {
		select {
		case clientChan <- ev:
		default:
		}
	}
}

func (e *PurchaseEmitter) removeClubClient(clubID string, clientChan chan PurchaseEvent) {
	e.clubClientMutex.Lock()
	defer e.clubClientMutex.Unlock()

	clients := e.clubClients[clubID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clubClients[clubID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clubClients[clubID]) == 0 {
		delete(e.clubClients, clubID)
	}
}

func (e *PurchaseEmitter) removeEventClient(eventID string, clientChan chan PurchaseEvent) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

// ClubClientCount reports subscribers for a club.
func (e *PurchaseEmitter) ClubClientCount(clubID string) int {
	e.clubClientMutex.RLock()
	defer e.clubClientMutex.RUnlock()
	return len(e.clubClients[clubID])
}

// EventClientCount reports subscribers for an event.
func (e *PurchaseEmitter) EventClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}
