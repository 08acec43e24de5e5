package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"user@example.com", false},
		{"first.last+tag@sub.example.co", false},
		{"", true},
		{"no-at-sign", true},
		{"user@nodot", true},
		{"@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("longenough"))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("team_name", "Red Dragons"))
	assert.Error(t, ValidateName("team_name", "   "))
	assert.NoError(t, ValidateName("team_name", strings.Repeat("é", 100)))

	err := ValidateName("team_name", strings.Repeat("x", 101))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team_name")
}

func TestValidateNotes(t *testing.T) {
	assert.NoError(t, ValidateNotes(""))
	assert.NoError(t, ValidateNotes(strings.Repeat("n", 2000)))
	assert.Error(t, ValidateNotes(strings.Repeat("n", 2001)))
}

func TestValidateEntityID(t *testing.T) {
	assert.NoError(t, ValidateEntityID("GAME-RUNNER"))
	assert.NoError(t, ValidateEntityID("G1"))
	assert.Error(t, ValidateEntityID("g1"))
	assert.Error(t, ValidateEntityID("X"))
	assert.Error(t, ValidateEntityID("-LEADING"))
}

// --- ID Tests ---

func TestGeneratedIDs(t *testing.T) {
	assert.Regexp(t, `^TEAM-[0-9A-F]{8}$`, NewTeamID())
	assert.Regexp(t, `^GAME-[0-9A-F]{8}$`, NewGameID())
	assert.Regexp(t, `^RESULT-[0-9A-F]{8}$`, NewResultID())

	for i := 0; i < 100; i++ {
		id := NewQRID()
		require.True(t, ValidQRID(id), id)
		require.NoError(t, ValidateEntityID(id))
	}
	assert.False(t, ValidQRID("QR-abc"))
	assert.False(t, ValidQRID("XX-ABCDEFGH"))
}

// --- Game Tests ---

func TestGame_ValidateRange(t *testing.T) {
	tests := []struct {
		name    string
		min     int
		max     int
		wantErr bool
	}{
		{"default", 0, 100, false},
		{"single value", 50, 50, false},
		{"inverted", 10, 5, true},
		{"negative min", -1, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Game{MinPoints: tt.min, MaxPoints: tt.max}
			if tt.wantErr {
				assert.Error(t, g.ValidateRange())
			} else {
				assert.NoError(t, g.ValidateRange())
			}
		})
	}
}

// --- Result / User Tests ---

func TestResult_Status(t *testing.T) {
	r := &Result{}
	assert.Equal(t, ResultPending, r.Status())
	r.VerifiedByAdmin = true
	assert.Equal(t, ResultVerified, r.Status())
}

func TestRoleAndCaller(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("superuser").Valid())

	u := &User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com", Role: RoleAdmin, PasswordHash: "secret"}
	assert.True(t, u.IsAdmin())
	assert.Equal(t, u.ID, u.Summary().ID)
	assert.False(t, Caller{Role: RoleUser}.IsAdmin())

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestTeam_OwnedBy(t *testing.T) {
	owner := uuid.New()
	team := &Team{ID: "TEAM-1", OwnerID: owner}
	assert.True(t, team.OwnedBy(owner))
	assert.False(t, team.OwnedBy(uuid.New()))
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrNotFound("team", "TEAM-1")
		assert.Equal(t, "NOT_FOUND: team TEAM-1 not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("database error", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	assert.ErrorIs(t, ErrQRIDTaken(), ErrQRCollision)
}

func TestErrorFactories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrNotFound", ErrNotFound("result", "RESULT-1"), "NOT_FOUND", 404},
		{"ErrConflict", ErrConflict("already exists"), "CONFLICT", 409},
		{"ErrValidation", ErrValidation("bad input"), "VALIDATION_ERROR", 400},
		{"ErrUnauthorized", ErrUnauthorized("no token"), "UNAUTHORIZED", 401},
		{"ErrForbidden", ErrForbidden("not allowed"), "FORBIDDEN", 403},
		{"ErrAccountLocked", ErrAccountLocked("too many attempts"), "ACCOUNT_LOCKED", 429},
		{"ErrRateLimited", ErrRateLimited("slow down"), "RATE_LIMITED", 429},
		{"ErrQRIDTaken", ErrQRIDTaken(), "CONFLICT", 409},
		{"ErrInternal", ErrInternal("oops", nil), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestScoreErrors(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		err := ErrScoreOutOfRange(15, 0, 10)
		assert.Equal(t, 400, err.Status)
		assert.Equal(t, ReasonOutOfRange, err.Details["reason"])
		assert.Equal(t, 15, err.Details["given"])
		assert.Equal(t, 0, err.Details["allowed_min"])
		assert.Equal(t, 10, err.Details["allowed_max"])
	})

	t.Run("global ceiling", func(t *testing.T) {
		err := ErrGlobalLimitExceeded(1001, 1000)
		assert.Equal(t, ReasonGlobalLimitExceeded, err.Details["reason"])
		assert.Equal(t, 1000, err.Details["ceiling"])
	})

	t.Run("below minimum has no upper bound", func(t *testing.T) {
		err := ErrScoreBelowMinimum(-1, 0)
		assert.Equal(t, ReasonOutOfRange, err.Details["reason"])
		assert.NotContains(t, err.Details, "allowed_max")
	})
}

// --- Event Tests ---

func TestNewResultEvent(t *testing.T) {
	game := "GAME-QUIZ"
	r := &Result{ID: "RESULT-1", UserID: uuid.New(), GameID: &game, PointsScored: 42}
	draft := NewResultEvent(EventResultCreated, r)

	assert.NotEqual(t, uuid.Nil, draft.EventID)
	assert.Equal(t, AggregateResult, draft.AggregateType)
	assert.Equal(t, "RESULT-1", draft.AggregateID)
	assert.Equal(t, EventResultCreated, draft.EventType)
	assert.Equal(t, r.UserID.String(), draft.PartitionKey)
	assert.JSONEq(t, `{"schema_version":"1"}`, string(draft.Headers))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(draft.Payload, &payload))
	assert.Equal(t, float64(42), payload["points_scored"])
	assert.Equal(t, "GAME-QUIZ", payload["game_id"])
}

func TestNewUserStatusEvent(t *testing.T) {
	admin := uuid.New()
	u := &User{ID: uuid.New(), IsActive: false}
	assert.Equal(t, EventUserDeactivated, NewUserStatusEvent(u, admin).EventType)
	u.IsActive = true
	assert.Equal(t, EventUserReactivated, NewUserStatusEvent(u, admin).EventType)
}

func TestNewUserRegisteredEvent(t *testing.T) {
	u := &User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada", QRID: "QR-ABCDEFGH"}
	draft := NewUserRegisteredEvent(u)
	assert.Equal(t, AggregateUser, draft.AggregateType)
	assert.Equal(t, EventUserRegistered, draft.EventType)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(draft.Payload, &payload))
	assert.Equal(t, "QR-ABCDEFGH", payload["qr_id"])
	assert.NotContains(t, payload, "password_hash")
}
