package model

import (
	"strings"
	"testing"
	"time"
)

func validPlayer() *PlayerRequest {
	return &PlayerRequest{ID: "alice@example.com", Name: "Alice", InfluenceLevel: 7, Status: StatusAlly}
}

// TestValidatePlayerRequest_Valid tests acceptance of well-formed requests
func TestValidatePlayerRequest_Valid(t *testing.T) {
	if err := ValidatePlayerRequest(validPlayer()); err != nil {
		t.Errorf("Expected valid request to pass: %v", err)
	}

	// UUID-style ids are fine too.
	req := validPlayer()
	req.ID = "550e8400-e29b-41d4-a716-446655440000"
	if err := ValidatePlayerRequest(req); err != nil {
		t.Errorf("Expected UUID id to pass: %v", err)
	}
}

// TestValidatePlayerRequest_DefaultsStatus tests the unknown-status default
func TestValidatePlayerRequest_DefaultsStatus(t *testing.T) {
	req := validPlayer()
	req.Status = ""
	if err := ValidatePlayerRequest(req); err != nil {
		t.Fatalf("Expected empty status to pass: %v", err)
	}
	if req.Status != StatusUnknown {
		t.Errorf("Expected status to default to unknown, got %q", req.Status)
	}
}

// TestValidatePlayerRequest_Invalid tests the rejection cases
func TestValidatePlayerRequest_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PlayerRequest)
	}{
		{"missing id", func(r *PlayerRequest) { r.ID = "" }},
		{"missing name", func(r *PlayerRequest) { r.Name = "" }},
		{"name too long", func(r *PlayerRequest) { r.Name = strings.Repeat("x", 201) }},
		{"influence too low", func(r *PlayerRequest) { r.InfluenceLevel = 0 }},
		{"influence too high", func(r *PlayerRequest) { r.InfluenceLevel = 11 }},
		{"bad status", func(r *PlayerRequest) { r.Status = "frenemy" }},
		{"id with spaces", func(r *PlayerRequest) { r.ID = "not a valid id" }},
		{"id leading dot", func(r *PlayerRequest) { r.ID = ".hidden" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validPlayer()
			tc.mutate(req)
			if err := ValidatePlayerRequest(req); err == nil {
				t.Errorf("Expected %s to be rejected", tc.name)
			}
		})
	}

	if err := ValidatePlayerRequest(nil); err == nil {
		t.Error("Expected nil request to be rejected")
	}
}

// TestValidateRelationshipRequest_Valid tests acceptance paths
func TestValidateRelationshipRequest_Valid(t *testing.T) {
	formal := &RelationshipRequest{FromPlayerID: "a", ToPlayerID: "b", Kind: KindFormal}
	if err := ValidateRelationshipRequest(formal); err != nil {
		t.Errorf("Expected formal edge to pass: %v", err)
	}

	informal := &RelationshipRequest{FromPlayerID: "a", ToPlayerID: "b", Kind: KindInformal, Type: "mentor", Strength: 6}
	if err := ValidateRelationshipRequest(informal); err != nil {
		t.Errorf("Expected informal edge to pass: %v", err)
	}
}

// TestValidateRelationshipRequest_Invalid tests the rejection cases
func TestValidateRelationshipRequest_Invalid(t *testing.T) {
	valid := func() *RelationshipRequest {
		return &RelationshipRequest{FromPlayerID: "a", ToPlayerID: "b", Kind: KindInformal, Strength: 5}
	}

	cases := []struct {
		name   string
		mutate func(*RelationshipRequest)
	}{
		{"self edge", func(r *RelationshipRequest) { r.ToPlayerID = "a" }},
		{"missing kind", func(r *RelationshipRequest) { r.Kind = "" }},
		{"unknown kind", func(r *RelationshipRequest) { r.Kind = "spiritual" }},
		{"informal without strength", func(r *RelationshipRequest) { r.Strength = 0 }},
		{"strength too high", func(r *RelationshipRequest) { r.Strength = 11 }},
		{"uppercase type", func(r *RelationshipRequest) { r.Type = "Mentor" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(req)
			if err := ValidateRelationshipRequest(req); err == nil {
				t.Errorf("Expected %s to be rejected", tc.name)
			}
		})
	}
}

// TestDedupKey tests equivalence and distinction rules of the event key
func TestDedupKey(t *testing.T) {
	base := CommunicationEvent{
		SourceType:   SourceMessage,
		Participants: []string{"alice", "bob"},
		Timestamp:    mustTime(t, "2026-08-01T10:00:00.500Z"),
	}

	reordered := base
	reordered.Participants = []string{"bob", "alice"}
	if base.DedupKey() != reordered.DedupKey() {
		t.Error("Expected participant order to not affect the key")
	}

	sameSecond := base
	sameSecond.Timestamp = mustTime(t, "2026-08-01T10:00:00.900Z")
	if base.DedupKey() != sameSecond.DedupKey() {
		t.Error("Expected message timestamps within the same second to collide")
	}

	nextSecond := base
	nextSecond.Timestamp = mustTime(t, "2026-08-01T10:00:01Z")
	if base.DedupKey() == nextSecond.DedupKey() {
		t.Error("Expected message timestamps a second apart to differ")
	}

	meeting := base
	meeting.SourceType = SourceMeeting
	if base.DedupKey() == meeting.DedupKey() {
		t.Error("Expected source type to be part of the key")
	}

	meetingLater := meeting
	meetingLater.Timestamp = mustTime(t, "2026-08-01T10:00:40Z")
	if meeting.DedupKey() != meetingLater.DedupKey() {
		t.Error("Expected meeting timestamps within the same minute to collide")
	}
}

// TestRelationshipStatus_IsRisk tests the adversarial statuses
func TestRelationshipStatus_IsRisk(t *testing.T) {
	if !StatusRival.IsRisk() || !StatusEnemy.IsRisk() {
		t.Error("Expected rival and enemy to be risks")
	}
	if StatusAlly.IsRisk() || StatusNeutral.IsRisk() || StatusUnknown.IsRisk() {
		t.Error("Expected ally, neutral and unknown to not be risks")
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("Failed to parse time %q: %v", s, err)
	}
	return parsed
}
