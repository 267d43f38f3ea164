package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
	"github.com/nurbekov/courtside/storage"
)

const (
	testPartyID = 1
	testHostID  = 10
)

type fakeRoomRepo struct {
	mu              sync.Mutex
	nextID          int
	rooms           map[int]*models.Room
	failUpdateState bool
	updateCalls     int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[int]*models.Room)}
}

func (r *fakeRoomRepo) UpsertActive(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.PartyID == room.PartyID && existing.Status == models.RoomStatusActive {
			existing.State = room.State
			existing.UpdatedAt = time.Now()
			room.ID = existing.ID
			room.Status = models.RoomStatusActive
			return nil
		}
	}
	r.nextID++
	room.ID = r.nextID
	room.Status = models.RoomStatusActive
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	stored := *room
	r.rooms[room.ID] = &stored
	return nil
}

func (r *fakeRoomRepo) GetActiveByParty(ctx context.Context, partyID int) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.PartyID == partyID && room.Status == models.RoomStatusActive {
			cp := *room
			return &cp, nil
		}
	}
	return nil, repositories.ErrRoomNotFound
}

func (r *fakeRoomRepo) GetLatestByParty(ctx context.Context, partyID int) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Room
	for _, room := range r.rooms {
		if room.PartyID != partyID {
			continue
		}
		if latest == nil || room.UpdatedAt.After(latest.UpdatedAt) {
			latest = room
		}
	}
	if latest == nil {
		return nil, repositories.ErrRoomNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeRoomRepo) UpdateState(ctx context.Context, roomID int, state models.RoomState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.failUpdateState {
		return errors.New("write refused")
	}
	room, ok := r.rooms[roomID]
	if !ok || room.Status != models.RoomStatusActive {
		return repositories.ErrRoomNotFound
	}
	room.State = state
	room.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRoomRepo) SetStatus(ctx context.Context, roomID int, status models.RoomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	room.Status = status
	room.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRoomRepo) ListActiveUpdatedBefore(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Room
	for _, room := range r.rooms {
		if room.Status == models.RoomStatusActive && room.UpdatedAt.Before(cutoff) {
			out = append(out, *room)
		}
	}
	return out, nil
}

type fakePartyRepo struct {
	parties map[int]*models.Party
}

func (r *fakePartyRepo) Create(ctx context.Context, party *models.Party) error { return nil }

func (r *fakePartyRepo) GetByID(ctx context.Context, id int) (*models.Party, error) {
	party, ok := r.parties[id]
	if !ok {
		return nil, repositories.ErrPartyNotFound
	}
	cp := *party
	return &cp, nil
}

func (r *fakePartyRepo) List(ctx context.Context, status *models.PartyStatus, limit, offset int) ([]models.Party, error) {
	return nil, nil
}

func (r *fakePartyRepo) Update(ctx context.Context, party *models.Party) error { return nil }

func (r *fakePartyRepo) UpdateStatus(ctx context.Context, id int, status models.PartyStatus) error {
	if party, ok := r.parties[id]; ok {
		party.Status = status
	}
	return nil
}

type fakeMemberRepo struct {
	members []models.Member
}

func (r *fakeMemberRepo) Add(ctx context.Context, member *models.Member) error { return nil }

func (r *fakeMemberRepo) Remove(ctx context.Context, partyID, userID int) error { return nil }

func (r *fakeMemberRepo) Get(ctx context.Context, partyID, userID int) (*models.Member, error) {
	return nil, repositories.ErrMemberNotFound
}

func (r *fakeMemberRepo) ListByParty(ctx context.Context, partyID int) ([]models.Member, error) {
	out := make([]models.Member, len(r.members))
	copy(out, r.members)
	return out, nil
}

func (r *fakeMemberRepo) UpdateLevel(ctx context.Context, partyID, userID int, level models.SkillLevel) error {
	return nil
}

func (r *fakeMemberRepo) CountByParty(ctx context.Context, partyID int) (int, error) {
	return len(r.members), nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.Room
}

func (p *fakePublisher) PublishRoom(ctx context.Context, room *models.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, room)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (fakeUploader) GetPublicURL(key string) string { return "https://cdn.test/" + key }

type sessionFixture struct {
	service  SessionService
	roomRepo *fakeRoomRepo
	pub      *fakePublisher
}

func newSessionFixture(t *testing.T, memberCount int) *sessionFixture {
	t.Helper()

	members := make([]models.Member, memberCount)
	for i := range members {
		members[i] = models.Member{
			PartyID:  testPartyID,
			UserID:   testHostID + i,
			Nickname: "player-" + strconv.Itoa(i),
			Level:    models.LevelIntermediate,
		}
	}

	roomRepo := newFakeRoomRepo()
	pub := &fakePublisher{}
	service := NewSessionService(
		roomRepo,
		&fakePartyRepo{parties: map[int]*models.Party{
			testPartyID: {ID: testPartyID, HostID: testHostID, Status: models.PartyStatusActive, MaxPlayers: 20},
		}},
		&fakeMemberRepo{members: members},
		pub,
		fakeUploader{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &sessionFixture{service: service, roomRepo: roomRepo, pub: pub}
}

func statePlayerCount(state models.RoomState) int {
	n := len(state.Queue)
	for _, court := range state.Courts {
		if court.Current != nil {
			n += len(court.Current.Team1) + len(court.Current.Team2)
		}
	}
	return n
}

func TestStartSessionSeedsRosterAndFillsCourts(t *testing.T) {
	fx := newSessionFixture(t, 6)
	ctx := context.Background()

	room, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)
	require.NotZero(t, room.ID)
	require.Equal(t, models.RoomStatusActive, room.Status)
	require.Len(t, room.State.Courts, 2)

	// Six players: four go onto the first court, two wait.
	require.Equal(t, 6, statePlayerCount(room.State))
	require.NotNil(t, room.State.Courts[0].Current)
	require.Nil(t, room.State.Courts[1].Current)
	require.Len(t, room.State.Queue, 2)

	require.Equal(t, 1, fx.pub.count())

	stored, err := fx.roomRepo.GetActiveByParty(ctx, testPartyID)
	require.NoError(t, err)
	require.Equal(t, room.State, stored.State)
}

func TestStartSessionRejectsNonHost(t *testing.T) {
	fx := newSessionFixture(t, 4)

	_, err := fx.service.StartSession(context.Background(), testPartyID, testHostID+1, 2)
	require.ErrorIs(t, err, ErrHostOnly)
}

func TestStartSessionIsIdempotentForPopulatedRoom(t *testing.T) {
	fx := newSessionFixture(t, 6)
	ctx := context.Background()

	first, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)

	second, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 6, statePlayerCount(second.State))
}

func TestMutationPersistsAndPublishes(t *testing.T) {
	fx := newSessionFixture(t, 6)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)

	// Six players leave two in the queue after start; pause one of those.
	pausedID := strconv.Itoa(testHostID + 4)
	room, err := fx.service.TogglePause(ctx, testPartyID, testHostID, pausedID)
	require.NoError(t, err)
	require.Equal(t, 1, fx.roomRepo.updateCalls)
	require.Equal(t, 2, fx.pub.count())

	stored, err := fx.roomRepo.GetActiveByParty(ctx, testPartyID)
	require.NoError(t, err)
	require.Equal(t, room.State, stored.State)
}

func TestMutationSurvivesPersistFailure(t *testing.T) {
	fx := newSessionFixture(t, 6)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)

	fx.roomRepo.failUpdateState = true

	// Two players are in the queue; pause one of them.
	pausedID := strconv.Itoa(testHostID + 4)
	room, err := fx.service.TogglePause(ctx, testPartyID, testHostID, pausedID)
	require.NoError(t, err)
	require.Equal(t, 2, fx.pub.count())

	// The in-memory state keeps the pause even though the write failed.
	state, err := fx.service.GetState(ctx, testPartyID)
	require.NoError(t, err)
	require.Equal(t, room.State, state.Room.State)

	var found bool
	for _, p := range state.Room.State.Queue {
		if p.ID == pausedID {
			found = true
			require.True(t, p.Paused)
		}
	}
	require.True(t, found)
}

func TestMutationRequiresActiveSession(t *testing.T) {
	fx := newSessionFixture(t, 4)

	_, err := fx.service.TogglePause(context.Background(), testPartyID, testHostID, "10")
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestAutoAssignRequiresConfirmation(t *testing.T) {
	fx := newSessionFixture(t, 6)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 2)
	require.NoError(t, err)

	_, err = fx.service.AutoAssign(ctx, testPartyID, testHostID, models.AssignRandom, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	room, err := fx.service.AutoAssign(ctx, testPartyID, testHostID, models.AssignRandom, true)
	require.NoError(t, err)
	require.Equal(t, 6, statePlayerCount(room.State))
}

func TestStopSessionIsTerminal(t *testing.T) {
	fx := newSessionFixture(t, 4)
	ctx := context.Background()

	room, err := fx.service.StartSession(ctx, testPartyID, testHostID, 1)
	require.NoError(t, err)

	err = fx.service.StopSession(ctx, testPartyID, testHostID, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	err = fx.service.StopSession(ctx, testPartyID, testHostID, true)
	require.NoError(t, err)

	_, err = fx.service.GetState(ctx, testPartyID)
	require.ErrorIs(t, err, ErrNoActiveSession)

	stored, err := fx.roomRepo.GetLatestByParty(ctx, testPartyID)
	require.NoError(t, err)
	require.Equal(t, room.ID, stored.ID)
	require.Equal(t, models.RoomStatusFinished, stored.Status)
}

func TestGetStateWithoutSession(t *testing.T) {
	fx := newSessionFixture(t, 4)

	_, err := fx.service.GetState(context.Background(), testPartyID)
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRankingsReflectFinishedMatches(t *testing.T) {
	fx := newSessionFixture(t, 4)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 1)
	require.NoError(t, err)

	_, err = fx.service.StartMatch(ctx, testPartyID, testHostID, 1)
	require.NoError(t, err)
	room, err := fx.service.FinishMatch(ctx, testPartyID, testHostID, 1, "21", "15")
	require.NoError(t, err)
	require.Len(t, room.State.Queue, 4)

	rankings, err := fx.service.Rankings(ctx, testPartyID)
	require.NoError(t, err)
	require.Len(t, rankings, 4)
	require.Equal(t, 1, rankings[0].Rank)
	require.Equal(t, 1, rankings[0].Player.Wins)
	require.Equal(t, 1, rankings[0].Player.RoundsPlayed)
	require.Equal(t, 0, rankings[2].Player.Wins)
}

func TestAddGuestValidatesLevel(t *testing.T) {
	fx := newSessionFixture(t, 4)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 1)
	require.NoError(t, err)

	_, err = fx.service.AddGuest(ctx, testPartyID, testHostID, "Drop-in", models.SkillLevel("legend"))
	require.ErrorIs(t, err, ErrInvalidSkillLevel)

	room, err := fx.service.AddGuest(ctx, testPartyID, testHostID, "Drop-in", models.LevelBeginner)
	require.NoError(t, err)
	require.Equal(t, 5, statePlayerCount(room.State))
}

func TestCloseStaleSessions(t *testing.T) {
	fx := newSessionFixture(t, 4)
	ctx := context.Background()

	_, err := fx.service.StartSession(ctx, testPartyID, testHostID, 1)
	require.NoError(t, err)

	// Nothing is stale yet.
	closed, err := fx.service.CloseStaleSessions(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, closed)

	closed, err = fx.service.CloseStaleSessions(ctx, -time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	_, err = fx.service.GetState(ctx, testPartyID)
	require.ErrorIs(t, err, ErrNoActiveSession)
}
