package model

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxNameLength = 200
	MaxTypeLength = 50

	// Player ids are caller-supplied (email addresses or UUIDs); keep the
	// character set tight so ids survive dedup keys and log fields.
	playerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9@._+-]*$`)
	typePattern     = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func init() {
	validate = validator.New()
}

// PlayerRequest is a request to create or update a player.
type PlayerRequest struct {
	ID             string             `json:"id" validate:"required,max=254"`
	Name           string             `json:"name" validate:"required,max=200"`
	Title          string             `json:"title" validate:"omitempty,max=200"`
	InfluenceLevel int                `json:"influence_level" validate:"required,min=1,max=10"`
	Status         RelationshipStatus `json:"relationship_status" validate:"omitempty,oneof=ally neutral rival enemy unknown"`
}

// RelationshipRequest is a request to upsert a relationship edge.
type RelationshipRequest struct {
	FromPlayerID string           `json:"from_player_id" validate:"required,max=254"`
	ToPlayerID   string           `json:"to_player_id" validate:"required,max=254"`
	Kind         RelationshipKind `json:"kind" validate:"required,oneof=formal informal"`
	Type         string           `json:"type" validate:"omitempty,max=50"`
	Strength     int              `json:"strength" validate:"omitempty,min=1,max=10"`
}

// ValidatePlayerRequest validates a player creation/update request.
func ValidatePlayerRequest(req *PlayerRequest) error {
	if req == nil {
		return errors.New("player request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if !playerIDPattern.MatchString(req.ID) {
		return fmt.Errorf("ID: %q contains invalid characters", req.ID)
	}

	if req.Status == "" {
		req.Status = StatusUnknown
	}

	return nil
}

// ValidateRelationshipRequest validates a relationship upsert request.
func ValidateRelationshipRequest(req *RelationshipRequest) error {
	if req == nil {
		return errors.New("relationship request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if req.FromPlayerID == req.ToPlayerID {
		return errors.New("FromPlayerID: self-edges are not allowed")
	}

	if req.Kind == KindInformal && req.Strength == 0 {
		return errors.New("Strength: required for informal relationships")
	}

	if req.Type != "" && !typePattern.MatchString(req.Type) {
		return fmt.Errorf("Type: %q must be lowercase alphanumeric with underscores", req.Type)
	}

	return nil
}

// formatValidationError converts validator errors into readable messages
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s: required field is missing", fe.Field())
		case "min":
			return fmt.Errorf("%s: value is below minimum %s", fe.Field(), fe.Param())
		case "max":
			return fmt.Errorf("%s: value exceeds maximum %s", fe.Field(), fe.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s: failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return err
}
