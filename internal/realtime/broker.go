package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Message types pushed to connected users.
const (
	TypeNotification = "notification"
	TypeRSVPChanged  = "rsvp_changed"
)

// Message defines the shape of our real-time data.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broker is the central hub for managing SSE client connections.
type Broker struct {
	// A map of client channels, keyed by profile ID.
	clients map[string]chan []byte
	// A mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

// NewBroker creates a new Broker instance.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string]chan []byte),
	}
}

// AddClient registers a new client (a user's connection) with the broker.
// A second connection for the same user replaces the first, whose channel
// is closed so its stream ends.
func (b *Broker) AddClient(userID string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.clients[userID]; ok {
		close(old)
	}
	ch := make(chan []byte, 10) // Buffered channel
	b.clients[userID] = ch
	log.Printf("INFO: SSE client connected for user %s", userID)
	return ch
}

// RemoveClient unregisters ch for userID. It does nothing when ch has
// already been replaced by a newer connection.
func (b *Broker) RemoveClient(userID string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.clients[userID]; ok && current == ch {
		delete(b.clients, userID)
		close(ch)
		log.Printf("INFO: SSE client disconnected for user %s", userID)
	}
}

// NotifyUser sends a message to a specific user if they are connected.
// It reports whether the message was queued.
func (b *Broker) NotifyUser(userID string, message Message) bool {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("ERROR: could not marshal SSE message for user %s: %v", userID, err)
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	clientChan, ok := b.clients[userID]
	if !ok {
		log.Printf("INFO: User %s is not connected to SSE. Cannot send notification.", userID)
		return false
	}

	// Non-blocking so a slow client never stalls the API handler.
	select {
	case clientChan <- jsonMsg:
		return true
	default:
		log.Printf("WARN: SSE channel for user %s is full. Dropping message.", userID)
		return false
	}
}
