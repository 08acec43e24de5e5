package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
)

// Store backs every in-memory repository with shared state so that, like the
// real schema, results can reference users, teams and games.
type Store struct {
	mu      sync.Mutex
	users   []*domain.User
	teams   map[string]*domain.Team
	games   map[string]*domain.Game
	results []*domain.Result
	events  []repository.OutboxRow
	seq     int64

	published []publishedEvent
	clock   time.Time
}

type publishedEvent struct {
	row repository.OutboxRow
	at  time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		teams: make(map[string]*domain.Team),
		games: make(map[string]*domain.Game),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now returns a strictly increasing timestamp so ordering is deterministic.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Users returns the UserRepository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Teams returns the TeamRepository view.
func (s *Store) Teams() repository.TeamRepository { return teamRepo{s} }

// Games returns the GameRepository view.
func (s *Store) Games() repository.GameRepository { return gameRepo{s} }

// Results returns the ResultRepository view.
func (s *Store) Results() repository.ResultRepository { return resultRepo{s} }

// Outbox returns the OutboxRepository view.
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

// Events returns the outbox events not yet marked published.
func (s *Store) Events() []domain.OutboxDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxDraft, len(s.events))
	for i, e := range s.events {
		out[i] = e.OutboxDraft
	}
	return out
}

// Published returns how many relayed events are still retained.
func (s *Store) Published() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// Now returns the store clock's current reading without advancing it.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// AddUser seeds an active user and returns it.
func (s *Store) AddUser(name string, role domain.Role) *domain.User {
	u := &domain.User{
		ID:       uuid.New(),
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:6]),
		Name:     name,
		Role:     role,
		QRID:     domain.NewQRID(),
		IsActive: true,
	}
	_ = s.Users().Create(context.Background(), nil, u)
	return u
}

// AddGame seeds an active game with the given range.
func (s *Store) AddGame(id string, min, max int) *domain.Game {
	g := &domain.Game{ID: id, Name: id, MinPoints: min, MaxPoints: max, IsActive: true}
	_ = s.Games().Create(context.Background(), nil, g)
	return g
}

// AddTeam seeds an active team owned by owner.
func (s *Store) AddTeam(id string, owner uuid.UUID) *domain.Team {
	t := &domain.Team{ID: id, Name: id, OwnerID: owner, IsActive: true}
	_ = s.Teams().Create(context.Background(), nil, t)
	return t
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) find(pred func(*domain.User) bool) *domain.User {
	for _, u := range r.s.users {
		if pred(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r userRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.ID == id }), nil
}

func (r userRepo) FindByEmail(_ context.Context, _ repository.DBTX, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r userRepo) FindByQRID(_ context.Context, _ repository.DBTX, qrID string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.QRID == qrID }), nil
}

func (r userRepo) List(_ context.Context, _ repository.DBTX) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r userRepo) Create(_ context.Context, _ repository.DBTX, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(func(x *domain.User) bool { return x.Email == u.Email }) != nil {
		return domain.ErrConflict("email already registered")
	}
	if r.find(func(x *domain.User) bool { return x.QRID == u.QRID }) != nil {
		return domain.ErrQRIDTaken()
	}
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	r.s.users = append(r.s.users, &c)
	return nil
}

func (r userRepo) mutate(id uuid.UUID, fn func(*domain.User)) *domain.User {
	for _, u := range r.s.users {
		if u.ID == id {
			fn(u)
			u.UpdatedAt = r.s.now()
			c := *u
			return &c
		}
	}
	return nil
}

func (r userRepo) UpdateRole(_ context.Context, _ repository.DBTX, id uuid.UUID, role domain.Role) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mutate(id, func(u *domain.User) { u.Role = role }), nil
}

func (r userRepo) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, active bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mutate(id, func(u *domain.User) { u.IsActive = active }), nil
}

func (r userRepo) SetQRImageKey(_ context.Context, _ repository.DBTX, id uuid.UUID, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.mutate(id, func(u *domain.User) { u.QRImageKey = key }) == nil {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

func (r userRepo) TouchLastLogin(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	r.mutate(id, func(u *domain.User) { u.LastLoginAt = &now })
	return nil
}

// --- teams ---

type teamRepo struct{ s *Store }

func (r teamRepo) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.teams[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (r teamRepo) list(pred func(*domain.Team) bool) []domain.Team {
	out := []domain.Team{}
	for _, t := range r.s.teams {
		if pred(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r teamRepo) ListByOwner(_ context.Context, _ repository.DBTX, ownerID uuid.UUID, includeInactive bool) ([]domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(t *domain.Team) bool { return t.OwnerID == ownerID && (includeInactive || t.IsActive) }), nil
}

func (r teamRepo) ListAll(_ context.Context, _ repository.DBTX, includeInactive bool) ([]domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(t *domain.Team) bool { return includeInactive || t.IsActive }), nil
}

func (r teamRepo) Create(_ context.Context, _ repository.DBTX, t *domain.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[t.ID]; ok {
		return domain.ErrConflict(fmt.Sprintf("team %s already exists", t.ID))
	}
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	c := *t
	r.s.teams[t.ID] = &c
	return nil
}

func (r teamRepo) Rename(_ context.Context, _ repository.DBTX, id, name string) (*domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, nil
	}
	t.Name = name
	t.UpdatedAt = r.s.now()
	c := *t
	return &c, nil
}

func (r teamRepo) Deactivate(_ context.Context, _ repository.DBTX, id string) (*domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, nil
	}
	t.IsActive = false
	t.UpdatedAt = r.s.now()
	c := *t
	return &c, nil
}

// --- games ---

type gameRepo struct{ s *Store }

func (r gameRepo) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g, ok := r.s.games[id]; ok {
		c := *g
		return &c, nil
	}
	return nil, nil
}

func (r gameRepo) List(_ context.Context, _ repository.DBTX, includeInactive bool) ([]domain.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Game{}
	for _, g := range r.s.games {
		if includeInactive || g.IsActive {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r gameRepo) Create(_ context.Context, _ repository.DBTX, g *domain.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.games[g.ID]; ok {
		return domain.ErrConflict(fmt.Sprintf("game %s already exists", g.ID))
	}
	for _, other := range r.s.games {
		if other.Name == g.Name {
			return domain.ErrConflict(fmt.Sprintf("game name %q already exists", g.Name))
		}
	}
	g.CreatedAt = r.s.now()
	g.UpdatedAt = g.CreatedAt
	c := *g
	r.s.games[g.ID] = &c
	return nil
}

func (r gameRepo) Update(_ context.Context, _ repository.DBTX, g *domain.Game) (*domain.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.games[g.ID]
	if !ok {
		return nil, nil
	}
	cur.Name, cur.Description = g.Name, g.Description
	cur.MinPoints, cur.MaxPoints, cur.IsActive = g.MinPoints, g.MaxPoints, g.IsActive
	cur.UpdatedAt = r.s.now()
	c := *cur
	return &c, nil
}

// --- results ---

type resultRepo struct{ s *Store }

func (r resultRepo) find(id string) *domain.Result {
	for _, res := range r.s.results {
		if res.ID == id {
			return res
		}
	}
	return nil
}

func (r resultRepo) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res := r.find(id); res != nil {
		c := *res
		return &c, nil
	}
	return nil, nil
}

func (r resultRepo) LockForUpdate(ctx context.Context, db repository.DBTX, id string) (*domain.Result, error) {
	return r.FindByID(ctx, db, id)
}

func (r resultRepo) Insert(_ context.Context, _ repository.DBTX, res *domain.Result) (*domain.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(res.ID) != nil {
		return nil, domain.ErrConflict(fmt.Sprintf("result %s already exists", res.ID))
	}
	c := *res
	c.PlayedAt = r.s.now()
	c.UpdatedAt = c.PlayedAt
	r.s.results = append(r.s.results, &c)
	out := c
	return &out, nil
}

func (r resultRepo) ApplyAdminUpdate(_ context.Context, _ repository.DBTX, id string, u repository.ResultAdminUpdate) (*domain.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res := r.find(id)
	if res == nil {
		return nil, nil
	}
	adminID := u.AdminUserID
	res.PointsScored = u.PointsScored
	res.Notes = u.Notes
	res.VerifiedByAdmin = u.VerifiedByAdmin
	res.AdminUserID = &adminID
	res.AdminName = u.AdminName
	res.UpdatedAt = r.s.now()
	c := *res
	return &c, nil
}

func (r resultRepo) filter(f domain.ResultFilter) []domain.Result {
	out := []domain.Result{}
	for _, res := range r.s.results {
		if f.UserID != nil && res.UserID != *f.UserID {
			continue
		}
		if f.TeamID != nil && (res.TeamID == nil || *res.TeamID != *f.TeamID) {
			continue
		}
		if f.GameID != nil && (res.GameID == nil || *res.GameID != *f.GameID) {
			continue
		}
		out = append(out, *res)
	}
	return out
}

func page(out []domain.Result, f domain.ResultFilter) []domain.Result {
	if f.Limit <= 0 {
		return out
	}
	if f.Offset >= len(out) {
		return []domain.Result{}
	}
	end := f.Offset + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[f.Offset:end]
}

func (r resultRepo) List(_ context.Context, _ repository.DBTX, f domain.ResultFilter) ([]domain.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.filter(f)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return page(out, f), nil
}

func (r resultRepo) ListChronological(_ context.Context, _ repository.DBTX, f domain.ResultFilter) ([]domain.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.filter(f), f), nil
}

// --- outbox ---

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, _ repository.DBTX, drafts ...domain.OutboxDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range drafts {
		r.s.seq++
		r.s.events = append(r.s.events, repository.OutboxRow{SeqID: r.s.seq, OutboxDraft: d})
	}
	return nil
}

func (r outboxRepo) Claim(_ context.Context, _ repository.DBTX, limit int) ([]repository.OutboxRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := min(limit, len(r.s.events))
	out := make([]repository.OutboxRow, n)
	copy(out, r.s.events[:n])
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, seqIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := make(map[int64]bool, len(seqIDs))
	for _, id := range seqIDs {
		done[id] = true
	}
	at := r.s.now()
	pending := r.s.events[:0]
	for _, e := range r.s.events {
		if done[e.SeqID] {
			r.s.published = append(r.s.published, publishedEvent{row: e, at: at})
			continue
		}
		pending = append(pending, e)
	}
	r.s.events = pending
	return nil
}

func (r outboxRepo) Backlog(_ context.Context, _ repository.DBTX) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.events)), nil
}

func (r outboxRepo) PurgePublished(_ context.Context, _ repository.DBTX, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.published[:0]
	for _, p := range r.s.published {
		if !p.at.Before(before) {
			kept = append(kept, p)
		}
	}
	purged := int64(len(r.s.published) - len(kept))
	r.s.published = kept
	return purged, nil
}
