// Package notify fans out per-owner notifications to connected channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Channel is one connected notification receiver
type Channel interface {
	// ID identifies the channel in logs
	ID() string
	// Send delivers one message
	Send(ctx context.Context, msg []byte) error
}

// Event names carried in CloneEvent.Message
const (
	EventCompleted = "COMPLETED"
	EventFailed    = "FAILED"
)

// CloneEvent is published once per finished clone job
type CloneEvent struct {
	OwnerID  string `json:"owner_id"`
	RepoName string `json:"repo_name"`
	Message  string `json:"message"`
}

// Hub keeps the channels registered for each owner
type Hub struct {
	mu       sync.Mutex
	channels map[string][]Channel
}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{channels: make(map[string][]Channel)}
}

// Register adds ch to the channels of ownerID
func (h *Hub) Register(ownerID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channels[ownerID] = append(h.channels[ownerID], ch)
	slog.Debug("Notification channel registered", "owner", ownerID, "channel", ch.ID())
}

// Unregister removes ch from the channels of ownerID. Unknown channels are ignored.
func (h *Hub) Unregister(ownerID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := h.channels[ownerID]
	i := slices.Index(channels, ch)
	if i < 0 {
		return
	}

	channels = slices.Delete(channels, i, i+1)
	if len(channels) == 0 {
		delete(h.channels, ownerID)
	} else {
		h.channels[ownerID] = channels
	}
	slog.Debug("Notification channel unregistered", "owner", ownerID, "channel", ch.ID())
}

// Count returns the number of channels registered for ownerID
func (h *Hub) Count(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[ownerID])
}

// Publish sends msg to every channel of ownerID. Send failures are logged
// and do not stop delivery to the remaining channels.
func (h *Hub) Publish(ctx context.Context, ownerID string, msg []byte) {
	h.mu.Lock()
	targets := slices.Clone(h.channels[ownerID])
	h.mu.Unlock()

	for _, ch := range targets {
		if err := ch.Send(ctx, msg); err != nil {
			slog.Warn("Failed to deliver notification",
				"owner", ownerID,
				"channel", ch.ID(),
				"error", err)
		}
	}
}

// PublishJSON encodes v and publishes it to ownerID
func (h *Hub) PublishJSON(ctx context.Context, ownerID string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	h.Publish(ctx, ownerID, msg)
	return nil
}
