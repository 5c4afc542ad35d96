package store

import (
	"context"
	"errors"
	"time"

	"github.com/subtexthq/powermap/pkg/model"
)

var (
	ErrPlayerNotFound       = errors.New("player not found")
	ErrPlayerExists         = errors.New("player already exists")
	ErrRelationshipNotFound = errors.New("relationship not found")
)

// Store persists the raw material of a tenant's power map: players, manually
// entered relationships and normalized communication events. The engine only
// depends on this interface; which backend is wired is a deployment choice.
//
// Event appends are idempotent on the dedup key, so re-ingesting the same
// source window never inflates edge weights.
type Store interface {
	CreatePlayer(ctx context.Context, p *model.Player) error
	GetPlayer(ctx context.Context, tenantID, playerID string) (*model.Player, error)
	ListPlayers(ctx context.Context, tenantID string) ([]model.Player, error)
	UpdatePlayer(ctx context.Context, p *model.Player) error
	// DeletePlayer removes the player and cascades to every relationship
	// touching them.
	DeletePlayer(ctx context.Context, tenantID, playerID string) error

	UpsertRelationship(ctx context.Context, r *model.Relationship) error
	ListRelationships(ctx context.Context, tenantID string) ([]model.Relationship, error)
	DeleteRelationship(ctx context.Context, tenantID, relationshipID string) error

	AppendEvents(ctx context.Context, tenantID string, events []model.CommunicationEvent) error
	// ListEvents returns events with a timestamp at or after since.
	ListEvents(ctx context.Context, tenantID string, since time.Time) ([]model.CommunicationEvent, error)

	Close() error
}
