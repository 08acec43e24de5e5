package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/policy"
	"github.com/scorekeep/arena/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *repotest.Store
	engine *Engine
	db     *repotest.DB
	user   *domain.User
	admin  *domain.User
	game   *domain.Game
}

func newFixture(t *testing.T, ceiling *int) *fixture {
	t.Helper()
	s := repotest.NewStore()
	f := &fixture{
		store:  s,
		engine: NewEngine(s.Users(), s.Teams(), s.Games(), s.Results(), s.Outbox(), policy.NewScorePolicy(ceiling)),
		db:     repotest.NewDB(),
		user:   s.AddUser("u1", domain.RoleUser),
		admin:  s.AddUser("root", domain.RoleAdmin),
		game:   s.AddGame("GAME-G1", 0, 10),
	}
	return f
}

func callerOf(u *domain.User) domain.Caller {
	return domain.Caller{ID: u.ID, Name: u.Name, Role: u.Role}
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }
func strP(v string) *string { return &v }

func appErr(t *testing.T, err error) *domain.AppError {
	t.Helper()
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae), "expected AppError, got %v", err)
	return ae
}

func TestStrPtr(t *testing.T) {
	t.Run("non-empty string", func(t *testing.T) {
		p := strPtr("hello")
		require.NotNil(t, p)
		assert.Equal(t, "hello", *p)
	})

	t.Run("empty string returns nil", func(t *testing.T) {
		assert.Nil(t, strPtr(""))
	})
}

func TestVerificationScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{
		Caller:       callerOf(f.user),
		GameID:       f.game.ID,
		PointsScored: 7,
	})
	require.NoError(t, err)
	assert.False(t, created.Result.VerifiedByAdmin)
	assert.Equal(t, domain.ResultPending, created.Result.Status())
	assert.Equal(t, f.user.ID, created.Result.UserID)
	assert.Nil(t, created.Result.AdminUserID)

	_, err = f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller:       callerOf(f.admin),
		ResultID:     created.Result.ID,
		PointsScored: intPtr(15),
	})
	ae := appErr(t, err)
	assert.Equal(t, 400, ae.Status)
	assert.Equal(t, 15, ae.Details["given"])
	assert.Equal(t, 0, ae.Details["allowed_min"])
	assert.Equal(t, 10, ae.Details["allowed_max"])

	stored, _ := f.store.Results().FindByID(ctx, nil, created.Result.ID)
	assert.Equal(t, 7, stored.PointsScored, "rejected update leaves the record untouched")
	assert.Nil(t, stored.AdminUserID)

	updated, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller:          callerOf(f.admin),
		ResultID:        created.Result.ID,
		PointsScored:    intPtr(10),
		VerifiedByAdmin: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Result.PointsScored)
	assert.True(t, updated.Result.VerifiedByAdmin)
	require.NotNil(t, updated.Result.AdminUserID)
	assert.Equal(t, f.admin.ID, *updated.Result.AdminUserID)
	assert.Equal(t, "root", updated.Result.AdminName)

	var types []domain.EventType
	for _, e := range updated.Events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []domain.EventType{domain.EventResultUpdated, domain.EventResultVerified}, types)
}

func TestExecuteCreate_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	other := f.store.AddUser("u2", domain.RoleUser)
	own := f.store.AddTeam("TEAM-OWN", f.user.ID)
	foreign := f.store.AddTeam("TEAM-FOREIGN", other.ID)
	gone := f.store.AddTeam("TEAM-GONE", f.user.ID)
	_, _ = f.store.Teams().Deactivate(ctx, nil, gone.ID)

	tests := []struct {
		name    string
		params  CreateParams
		wantMsg string
	}{
		{"above range", CreateParams{GameID: f.game.ID, PointsScored: 11}, "between 0 and 10"},
		{"below range", CreateParams{GameID: f.game.ID, PointsScored: -1}, "between 0 and 10"},
		{"unknown game", CreateParams{GameID: "GAME-NOPE", PointsScored: 1}, "does not exist"},
		{"unknown team", CreateParams{TeamID: "TEAM-NOPE", PointsScored: 1}, "does not exist"},
		{"foreign team", CreateParams{TeamID: foreign.ID, PointsScored: 1}, "not owned"},
		{"inactive team", CreateParams{TeamID: gone.ID, PointsScored: 1}, "inactive"},
		{"negative without game", CreateParams{PointsScored: -5}, "at least 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Caller = callerOf(f.user)
			_, err := f.engine.ExecuteCreate(ctx, f.db, tt.params)
			ae := appErr(t, err)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			assert.Contains(t, ae.Message, tt.wantMsg)
		})
	}

	t.Run("own active team", func(t *testing.T) {
		res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{
			Caller: callerOf(f.user), TeamID: own.ID, GameID: f.game.ID, PointsScored: 3, Notes: "good run",
		})
		require.NoError(t, err)
		require.NotNil(t, res.Result.TeamID)
		assert.Equal(t, own.ID, *res.Result.TeamID)
		assert.Equal(t, "good run", res.Result.Notes)
	})
}

func TestExecuteCreate_SelfServiceCannotVerify(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.ExecuteCreate(context.Background(), f.db, CreateParams{
		Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 5, VerifiedByAdmin: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Result.VerifiedByAdmin)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.EventResultCreated, res.Events[0].EventType)
}

func TestExecuteCreate_UserCannotRecordForOthers(t *testing.T) {
	f := newFixture(t, nil)
	other := f.store.AddUser("u2", domain.RoleUser)

	_, err := f.engine.ExecuteCreate(context.Background(), f.db, CreateParams{
		Caller: callerOf(f.user), UserID: other.ID, PointsScored: 1,
	})
	assert.Equal(t, "FORBIDDEN", appErr(t, err).Code)
}

func TestExecuteCreate_AdminVerifiesOnCreate(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.ExecuteCreate(context.Background(), f.db, CreateParams{
		Caller: callerOf(f.admin), UserID: f.user.ID, GameID: f.game.ID, PointsScored: 9, VerifiedByAdmin: true,
	})
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, res.Result.UserID)
	assert.True(t, res.Result.VerifiedByAdmin)
	require.NotNil(t, res.Result.AdminUserID)
	assert.Equal(t, f.admin.ID, *res.Result.AdminUserID)
	assert.Len(t, f.store.Events(), 2)
}

func TestExecuteCreate_InactiveGame(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := *f.game
	g.IsActive = false
	_, _ = f.store.Games().Update(ctx, nil, &g)

	_, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: g.ID, PointsScored: 1})
	assert.Contains(t, appErr(t, err).Message, "inactive")
}

func TestExecuteCreate_GlobalCeiling(t *testing.T) {
	ceiling := 5
	f := newFixture(t, &ceiling)

	_, err := f.engine.ExecuteCreate(context.Background(), f.db, CreateParams{
		Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 8,
	})
	ae := appErr(t, err)
	assert.Equal(t, domain.ReasonGlobalLimitExceeded, ae.Details["reason"])
	assert.Equal(t, 5, ae.Details["ceiling"])
}

func TestExecuteAdminUpdate_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 4})
	require.NoError(t, err)

	t.Run("non-admin", func(t *testing.T) {
		_, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
			Caller: callerOf(f.user), ResultID: res.Result.ID, PointsScored: intPtr(5),
		})
		assert.Equal(t, 403, appErr(t, err).Status)
	})

	t.Run("unknown result", func(t *testing.T) {
		_, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
			Caller: callerOf(f.admin), ResultID: "RESULT-MISSING", PointsScored: intPtr(5),
		})
		assert.Equal(t, 404, appErr(t, err).Status)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
			Caller: callerOf(f.admin), ResultID: res.Result.ID,
		})
		assert.Equal(t, 400, appErr(t, err).Status)
	})
}

func TestExecuteAdminUpdate_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 4})
	require.NoError(t, err)

	params := AdminUpdateParams{
		Caller:          callerOf(f.admin),
		ResultID:        res.Result.ID,
		PointsScored:    intPtr(6),
		Notes:           strP("checked on camera"),
		VerifiedByAdmin: boolPtr(true),
	}

	first, err := f.engine.ExecuteAdminUpdate(ctx, f.db, params)
	require.NoError(t, err)
	eventsAfterFirst := len(f.store.Events())

	second, err := f.engine.ExecuteAdminUpdate(ctx, f.db, params)
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Empty(t, second.Events)
	assert.Equal(t, first.Result.PointsScored, second.Result.PointsScored)
	assert.Equal(t, first.Result.Notes, second.Result.Notes)
	assert.Equal(t, first.Result.VerifiedByAdmin, second.Result.VerifiedByAdmin)
	assert.Equal(t, first.Result.AdminUserID, second.Result.AdminUserID)
	assert.Equal(t, first.Result.UpdatedAt, second.Result.UpdatedAt)
	assert.Equal(t, eventsAfterFirst, len(f.store.Events()))
}

func TestExecuteAdminUpdate_KeepsPendingWhenFlagOmitted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 4})
	require.NoError(t, err)

	out, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller: callerOf(f.admin), ResultID: res.Result.ID, Notes: strP("typo fixed"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultPending, out.Result.Status())
	assert.Equal(t, 4, out.Result.PointsScored)
	require.NotNil(t, out.Result.AdminUserID)
	require.Len(t, out.Events, 1)
}

func TestExecuteAdminUpdate_VerifiedIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 7})
	require.NoError(t, err)

	_, err = f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller: callerOf(f.admin), ResultID: res.Result.ID, VerifiedByAdmin: boolPtr(true),
	})
	require.NoError(t, err)
	eventsBefore := len(f.store.Events())

	_, err = f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller: callerOf(f.admin), ResultID: res.Result.ID, VerifiedByAdmin: boolPtr(false),
	})
	ae := appErr(t, err)
	assert.Equal(t, 400, ae.Status)
	assert.Contains(t, ae.Message, "cannot return to pending")
	assert.Equal(t, eventsBefore, len(f.store.Events()))

	// Other fields stay editable and the result stays verified.
	out, err := f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller: callerOf(f.admin), ResultID: res.Result.ID, PointsScored: intPtr(8),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultVerified, out.Result.Status())
	assert.Equal(t, 8, out.Result.PointsScored)
}

func TestExecuteAdminUpdate_UsesCurrentGameRange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.ExecuteCreate(ctx, f.db, CreateParams{Caller: callerOf(f.user), GameID: f.game.ID, PointsScored: 9})
	require.NoError(t, err)

	// Narrowing the range does not touch stored results...
	g := *f.game
	g.MaxPoints = 5
	_, _ = f.store.Games().Update(ctx, nil, &g)
	stored, _ := f.store.Results().FindByID(ctx, nil, res.Result.ID)
	assert.Equal(t, 9, stored.PointsScored)

	// ...but an update is validated against the current range.
	_, err = f.engine.ExecuteAdminUpdate(ctx, f.db, AdminUpdateParams{
		Caller: callerOf(f.admin), ResultID: res.Result.ID, VerifiedByAdmin: boolPtr(true),
	})
	assert.Equal(t, 5, appErr(t, err).Details["allowed_max"])
}

func TestExecuteCreate_UnknownOwner(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.ExecuteCreate(context.Background(), f.db, CreateParams{
		Caller: callerOf(f.admin), UserID: uuid.New(), PointsScored: 1,
	})
	assert.Equal(t, "VALIDATION_ERROR", appErr(t, err).Code)
}
