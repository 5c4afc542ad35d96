package model

import (
	"sort"
	"strings"
	"time"
)

// RelationshipStatus is the user-assigned standing of a player toward the user.
type RelationshipStatus string

const (
	StatusAlly    RelationshipStatus = "ally"
	StatusNeutral RelationshipStatus = "neutral"
	StatusRival   RelationshipStatus = "rival"
	StatusEnemy   RelationshipStatus = "enemy"
	StatusUnknown RelationshipStatus = "unknown"
)

// IsRisk returns true for statuses that flag a player as adversarial.
func (s RelationshipStatus) IsRisk() bool {
	return s == StatusRival || s == StatusEnemy
}

// Player is a person in the tenant's organization.
type Player struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenant_id"`
	Name           string             `json:"name"`
	Title          string             `json:"title,omitempty"`
	InfluenceLevel int                `json:"influence_level"`
	Status         RelationshipStatus `json:"relationship_status"`
	// Notes holds the encrypted notes token. Plaintext never appears here;
	// callers must go through the encryption service to read it.
	Notes     *EncryptedField `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RelationshipKind separates hard hierarchy from soft influence.
type RelationshipKind string

const (
	KindFormal   RelationshipKind = "formal"
	KindInformal RelationshipKind = "informal"
)

// Relationship is a directed edge between two players. Formal edges mean
// ToPlayer reports to FromPlayer and must keep the hierarchy a forest.
type Relationship struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	FromPlayerID string           `json:"from_player_id"`
	ToPlayerID   string           `json:"to_player_id"`
	Kind         RelationshipKind `json:"kind"`
	Type         string           `json:"type,omitempty"`
	Strength     int              `json:"strength,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SourceType tags where a communication signal came from.
type SourceType string

const (
	SourceMessage SourceType = "message"
	SourceMeeting SourceType = "meeting"
)

// CommunicationEvent is a normalized communication signal. Immutable once
// created; only participants and timing survive normalization, never payloads.
type CommunicationEvent struct {
	SourceType   SourceType `json:"source_type"`
	Participants []string   `json:"participants"`
	Timestamp    time.Time  `json:"timestamp"`
	WeightHint   float64    `json:"weight_hint"`
}

// DedupKey identifies an event for idempotent normalization: source type,
// sorted participant set, and the timestamp rounded to the source's natural
// granularity (messages to the second, meeting starts to the minute).
func (e CommunicationEvent) DedupKey() string {
	parts := make([]string, len(e.Participants))
	copy(parts, e.Participants)
	sort.Strings(parts)

	granularity := time.Second
	if e.SourceType == SourceMeeting {
		granularity = time.Minute
	}
	ts := e.Timestamp.UTC().Truncate(granularity)

	return string(e.SourceType) + "|" + strings.Join(parts, ",") + "|" + ts.Format(time.RFC3339)
}

// Provenance records where an edge's effective weight came from.
type Provenance string

const (
	ProvenanceManual  Provenance = "manual"
	ProvenanceDerived Provenance = "derived"
	ProvenanceBoth    Provenance = "both"
)

// EncryptedField is the opaque wire form of an encrypted value.
// It never contains plaintext.
type EncryptedField struct {
	Alg        string `json:"alg"`
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`
}
