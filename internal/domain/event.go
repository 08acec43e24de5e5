package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a change recorded in the outbox as arena.<aggregate>.<verb>.
type EventType string

const (
	EventUserRegistered  EventType = "arena.user.registered"
	EventUserRoleChanged EventType = "arena.user.role_changed"
	EventUserDeactivated EventType = "arena.user.deactivated"
	EventUserReactivated EventType = "arena.user.reactivated"

	EventTeamCreated     EventType = "arena.team.created"
	EventTeamUpdated     EventType = "arena.team.updated"
	EventTeamDeactivated EventType = "arena.team.deactivated"

	EventGameCreated EventType = "arena.game.created"
	EventGameUpdated EventType = "arena.game.updated"

	EventResultCreated  EventType = "arena.result.created"
	EventResultUpdated  EventType = "arena.result.updated"
	EventResultVerified EventType = "arena.result.verified"
)

// AggregateType is the entity an event belongs to. It also picks the Kafka topic.
type AggregateType string

const (
	AggregateUser   AggregateType = "user"
	AggregateTeam   AggregateType = "team"
	AggregateGame   AggregateType = "game"
	AggregateResult AggregateType = "result"
)

// EventSchemaVersion is stamped into every event's headers.
const EventSchemaVersion = "1"

var eventHeaders = json.RawMessage(`{"schema_version":"` + EventSchemaVersion + `"}`)

// OutboxDraft is an event waiting to be written to event_outbox in the same
// transaction as the change it describes. Events sharing a PartitionKey are
// relayed in order.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func draft(agg AggregateType, aggID string, evt EventType, partitionKey string, payload any) OutboxDraft {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are domain structs and string maps; this cannot fail.
		panic("domain: encode event payload: " + err.Error())
	}
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		PartitionKey:  partitionKey,
		Headers:       eventHeaders,
		Payload:       data,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewUserRegisteredEvent announces a new account.
func NewUserRegisteredEvent(u *User) OutboxDraft {
	id := u.ID.String()
	return draft(AggregateUser, id, EventUserRegistered, id, map[string]string{
		"user_id": id,
		"email":   u.Email,
		"name":    u.Name,
		"qr_id":   u.QRID,
	})
}

// NewUserRoleChangedEvent records an admin role change.
func NewUserRoleChangedEvent(u *User, adminID uuid.UUID) OutboxDraft {
	id := u.ID.String()
	return draft(AggregateUser, id, EventUserRoleChanged, id, map[string]string{
		"user_id":  id,
		"role":     string(u.Role),
		"admin_id": adminID.String(),
	})
}

// NewUserStatusEvent records an admin (de)activation.
func NewUserStatusEvent(u *User, adminID uuid.UUID) OutboxDraft {
	evt := EventUserDeactivated
	if u.IsActive {
		evt = EventUserReactivated
	}
	id := u.ID.String()
	return draft(AggregateUser, id, evt, id, map[string]string{
		"user_id":  id,
		"admin_id": adminID.String(),
	})
}

// NewTeamEvent is keyed by owner so one user's team changes stay ordered.
func NewTeamEvent(evt EventType, t *Team) OutboxDraft {
	return draft(AggregateTeam, t.ID, evt, t.OwnerID.String(), t)
}

func NewGameEvent(evt EventType, g *Game) OutboxDraft {
	return draft(AggregateGame, g.ID, evt, g.ID, g)
}

// NewResultEvent is keyed by the scoring user, so a consumer sees one
// user's results in order.
func NewResultEvent(evt EventType, r *Result) OutboxDraft {
	return draft(AggregateResult, r.ID, evt, r.UserID.String(), r)
}
