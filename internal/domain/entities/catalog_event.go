package entities

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEventType represents the type of catalog event
type CatalogEventType string

const (
	CatalogEventRefreshed CatalogEventType = "catalog_refreshed"
)

// CatalogEvent announces that an instance installed a new trial snapshot.
// Origin identifies the publishing instance so it can ignore its own events.
type CatalogEvent struct {
	ID        string           `json:"id"`
	EventType CatalogEventType `json:"event_type"`
	Origin    string           `json:"origin"`
	Source    string           `json:"source"`
	Trials    int              `json:"trials"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewCatalogEvent creates a new catalog event
func NewCatalogEvent(eventType CatalogEventType, origin, source string, trials int) *CatalogEvent {
	return &CatalogEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Origin:    origin,
		Source:    source,
		Trials:    trials,
		Timestamp: time.Now().UTC(),
	}
}
