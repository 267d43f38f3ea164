package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nurbekov/courtside/feed"
	"github.com/nurbekov/courtside/matchmaking"
	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
	"github.com/nurbekov/courtside/storage"
)

const defaultCourtCount = 2

// SessionState is what viewers get: the persisted room plus the derived
// next-up preview.
type SessionState struct {
	Room   *models.Room           `json:"room"`
	NextUp []models.SessionPlayer `json:"next_up"`
}

// SessionService owns one matchmaking coordinator per active party and
// drives the snapshot protocol around every mutation: mutate in memory,
// overwrite the room row, publish to the change feed. A failed write is
// logged but never rolls the in-memory state back; the next successful
// write re-syncs the store.
type SessionService interface {
	StartSession(ctx context.Context, partyID, userID, courtCount int) (*models.Room, error)
	StopSession(ctx context.Context, partyID, userID int, confirm bool) error
	GetState(ctx context.Context, partyID int) (*SessionState, error)

	AutoAssign(ctx context.Context, partyID, userID int, algorithm models.AssignAlgorithm, confirm bool) (*models.Room, error)
	FillCourt(ctx context.Context, partyID, userID, courtID int) (*models.Room, error)
	StartMatch(ctx context.Context, partyID, userID, courtID int) (*models.Room, error)
	FinishMatch(ctx context.Context, partyID, userID, courtID int, score1, score2 string) (*models.Room, error)
	SwapPlayers(ctx context.Context, partyID, userID, courtID int) (*models.Room, error)
	Substitute(ctx context.Context, partyID, userID, courtID int, courtPlayerID, queuePlayerID string) (*models.Room, error)
	SwapQueue(ctx context.Context, partyID, userID int, playerA, playerB string) (*models.Room, error)
	TogglePause(ctx context.Context, partyID, userID int, playerID string) (*models.Room, error)
	SetCourtCount(ctx context.Context, partyID, userID, count int) (*models.Room, error)
	RenameCourt(ctx context.Context, partyID, userID, courtID int, name string) (*models.Room, error)
	SetRotationMode(ctx context.Context, partyID, userID int, mode models.RotationMode) (*models.Room, error)
	SetAlgorithm(ctx context.Context, partyID, userID int, algorithm models.AssignAlgorithm) (*models.Room, error)
	ResetSession(ctx context.Context, partyID, userID int, confirm bool) (*models.Room, error)
	RefreshPlayers(ctx context.Context, partyID, userID int, confirm bool) (*models.Room, error)
	AddGuest(ctx context.Context, partyID, userID int, name string, level models.SkillLevel) (*models.Room, error)
	RemovePlayer(ctx context.Context, partyID, userID int, playerID string) (*models.Room, error)

	Rankings(ctx context.Context, partyID int) ([]models.RankingEntry, error)
	CloseStaleSessions(ctx context.Context, maxIdle time.Duration) (int, error)
}

type liveSession struct {
	coord  *matchmaking.Coordinator
	roomID int
}

type sessionService struct {
	mu     sync.Mutex
	active map[int]*liveSession

	roomRepo   repositories.RoomRepository
	partyRepo  repositories.PartyRepository
	memberRepo repositories.MemberRepository
	publisher  feed.Publisher
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewSessionService(
	roomRepo repositories.RoomRepository,
	partyRepo repositories.PartyRepository,
	memberRepo repositories.MemberRepository,
	publisher feed.Publisher,
	uploader storage.FileUploader,
	logger *slog.Logger,
) SessionService {
	return &sessionService{
		active:     make(map[int]*liveSession),
		roomRepo:   roomRepo,
		partyRepo:  partyRepo,
		memberRepo: memberRepo,
		publisher:  publisher,
		uploader:   uploader,
		logger:     logger,
	}
}

// requireHost loads the party and verifies the acting user is its host.
// Mutations are host-gated here, not in the UI.
func (s *sessionService) requireHost(ctx context.Context, partyID, userID int) (*models.Party, error) {
	party, err := s.partyRepo.GetByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	if party.HostID != userID {
		return nil, ErrHostOnly
	}
	return party, nil
}

func (s *sessionService) StartSession(ctx context.Context, partyID, userID, courtCount int) (*models.Room, error) {
	if _, err := s.requireHost(ctx, partyID, userID); err != nil {
		return nil, err
	}
	if courtCount == 0 {
		courtCount = defaultCourtCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active[partyID]
	if sess == nil {
		var err error
		sess, err = s.resumeOrCreateLocked(ctx, partyID, courtCount)
		if err != nil {
			return nil, err
		}
	}

	// Seed the queue from the roster when the session is empty; an already
	// populated snapshot (resumed session) is left alone.
	if stateIsEmpty(sess.coord.Snapshot()) {
		players, err := s.rosterPlayers(ctx, partyID)
		if err != nil {
			return nil, err
		}
		sess.coord.SeedQueue(players)
	}
	sess.coord.AssignIdleCourts()

	room := &models.Room{
		PartyID: partyID,
		State:   sess.coord.Snapshot(),
	}
	if err := s.roomRepo.UpsertActive(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room for party %d: %w", partyID, err)
	}
	sess.roomID = room.ID
	s.active[partyID] = sess
	s.publish(ctx, room)
	return room, nil
}

// resumeOrCreateLocked rebuilds a coordinator from a persisted active room,
// or makes a fresh one when there is none. A snapshot with a foreign schema
// version is rejected and replaced instead of trusted.
func (s *sessionService) resumeOrCreateLocked(ctx context.Context, partyID, courtCount int) (*liveSession, error) {
	stored, err := s.roomRepo.GetActiveByParty(ctx, partyID)
	if err != nil && !errors.Is(err, repositories.ErrRoomNotFound) {
		return nil, err
	}
	if err == nil {
		coord, restoreErr := matchmaking.Restore(stored.State)
		if restoreErr == nil {
			return &liveSession{coord: coord, roomID: stored.ID}, nil
		}
		s.logger.Warn("discarding unreadable room snapshot",
			slog.Int("party_id", partyID),
			slog.Int("room_id", stored.ID),
			slog.Any("error", restoreErr))
	}
	coord, err := matchmaking.New(courtCount)
	if err != nil {
		return nil, err
	}
	return &liveSession{coord: coord}, nil
}

func (s *sessionService) StopSession(ctx context.Context, partyID, userID int, confirm bool) error {
	if _, err := s.requireHost(ctx, partyID, userID); err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx, partyID)
	if err != nil {
		return err
	}
	if err := s.roomRepo.SetStatus(ctx, sess.roomID, models.RoomStatusFinished); err != nil {
		return fmt.Errorf("failed to finish room %d: %w", sess.roomID, err)
	}
	delete(s.active, partyID)

	s.publish(ctx, &models.Room{
		ID:      sess.roomID,
		PartyID: partyID,
		Status:  models.RoomStatusFinished,
		State:   sess.coord.Snapshot(),
	})
	return nil
}

func (s *sessionService) GetState(ctx context.Context, partyID int) (*SessionState, error) {
	s.mu.Lock()
	sess := s.active[partyID]
	s.mu.Unlock()

	if sess != nil {
		state := sess.coord.Snapshot()
		return &SessionState{
			Room: &models.Room{
				ID:      sess.roomID,
				PartyID: partyID,
				Status:  models.RoomStatusActive,
				State:   state,
			},
			NextUp: matchmaking.NextUp(state.Queue),
		}, nil
	}

	stored, err := s.roomRepo.GetActiveByParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return &SessionState{
		Room:   stored,
		NextUp: matchmaking.NextUp(stored.State.Queue),
	}, nil
}

func (s *sessionService) AutoAssign(ctx context.Context, partyID, userID int, algorithm models.AssignAlgorithm, confirm bool) (*models.Room, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.AutoAssign(algorithm)
	})
}

func (s *sessionService) FillCourt(ctx context.Context, partyID, userID, courtID int) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.FillCourt(courtID)
	})
}

func (s *sessionService) StartMatch(ctx context.Context, partyID, userID, courtID int) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.StartMatch(courtID)
	})
}

func (s *sessionService) FinishMatch(ctx context.Context, partyID, userID, courtID int, score1, score2 string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.FinishMatch(courtID, score1, score2)
	})
}

func (s *sessionService) SwapPlayers(ctx context.Context, partyID, userID, courtID int) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.SwapPlayers(courtID)
	})
}

func (s *sessionService) Substitute(ctx context.Context, partyID, userID, courtID int, courtPlayerID, queuePlayerID string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.Substitute(courtID, courtPlayerID, queuePlayerID)
	})
}

func (s *sessionService) SwapQueue(ctx context.Context, partyID, userID int, playerA, playerB string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.SwapQueue(playerA, playerB)
	})
}

func (s *sessionService) TogglePause(ctx context.Context, partyID, userID int, playerID string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.TogglePause(playerID)
	})
}

func (s *sessionService) SetCourtCount(ctx context.Context, partyID, userID, count int) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.SetCourtCount(count)
	})
}

func (s *sessionService) RenameCourt(ctx context.Context, partyID, userID, courtID int, name string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.RenameCourt(courtID, name)
	})
}

func (s *sessionService) SetRotationMode(ctx context.Context, partyID, userID int, mode models.RotationMode) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.SetRotationMode(mode)
	})
}

func (s *sessionService) SetAlgorithm(ctx context.Context, partyID, userID int, algorithm models.AssignAlgorithm) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.SetAlgorithm(algorithm)
	})
}

func (s *sessionService) ResetSession(ctx context.Context, partyID, userID int, confirm bool) (*models.Room, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		c.Reset()
		return nil
	})
}

// RefreshPlayers re-pulls the roster into the queue. Destructive: current
// courts and queue state are dropped on purpose.
func (s *sessionService) RefreshPlayers(ctx context.Context, partyID, userID int, confirm bool) (*models.Room, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}
	players, err := s.rosterPlayers(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		c.ClearCourts()
		c.SeedQueue(players)
		return nil
	})
}

func (s *sessionService) AddGuest(ctx context.Context, partyID, userID int, name string, level models.SkillLevel) (*models.Room, error) {
	if level != "" && !level.Valid() {
		return nil, ErrInvalidSkillLevel
	}
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		_, err := c.AddGuest(name, level)
		return err
	})
}

func (s *sessionService) RemovePlayer(ctx context.Context, partyID, userID int, playerID string) (*models.Room, error) {
	return s.mutate(ctx, partyID, userID, func(c *matchmaking.Coordinator) error {
		return c.RemovePlayer(playerID)
	})
}

func (s *sessionService) Rankings(ctx context.Context, partyID int) ([]models.RankingEntry, error) {
	s.mu.Lock()
	sess := s.active[partyID]
	s.mu.Unlock()

	if sess != nil {
		return matchmaking.RankPlayers(sess.coord.Snapshot()), nil
	}
	stored, err := s.roomRepo.GetLatestByParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return matchmaking.RankPlayers(stored.State), nil
}

// CloseStaleSessions finishes active rooms nobody has touched for maxIdle.
// Run periodically by the janitor in main.
func (s *sessionService) CloseStaleSessions(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)
	stale, err := s.roomRepo.ListActiveUpdatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale rooms: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, room := range stale {
		room := room
		g.Go(func() error {
			if err := s.roomRepo.SetStatus(gCtx, room.ID, models.RoomStatusFinished); err != nil {
				return fmt.Errorf("failed to finish stale room %d: %w", room.ID, err)
			}
			s.mu.Lock()
			if sess := s.active[room.PartyID]; sess != nil && sess.roomID == room.ID {
				delete(s.active, room.PartyID)
			}
			s.mu.Unlock()
			room.Status = models.RoomStatusFinished
			s.publish(gCtx, &room)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// mutate is the shared write path: host check, operation under the
// coordinator lock, then persist-and-publish of the full snapshot.
func (s *sessionService) mutate(ctx context.Context, partyID, userID int, op func(*matchmaking.Coordinator) error) (*models.Room, error) {
	if _, err := s.requireHost(ctx, partyID, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, partyID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := op(sess.coord); err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:      sess.roomID,
		PartyID: partyID,
		Status:  models.RoomStatusActive,
		State:   sess.coord.Snapshot(),
	}
	// The in-memory state stays authoritative even when the write fails;
	// the next successful write re-syncs the store.
	if err := s.roomRepo.UpdateState(ctx, sess.roomID, room.State); err != nil {
		s.logger.Error("room snapshot write failed, local state now ahead of store",
			slog.Int("party_id", partyID),
			slog.Int("room_id", sess.roomID),
			slog.Any("error", err))
	}
	s.publish(ctx, room)
	return room, nil
}

// sessionLocked returns the live session for a party, resuming it from the
// store if the coordinator is not resident (e.g. after a restart).
// Callers must hold s.mu.
func (s *sessionService) sessionLocked(ctx context.Context, partyID int) (*liveSession, error) {
	if sess := s.active[partyID]; sess != nil {
		return sess, nil
	}
	stored, err := s.roomRepo.GetActiveByParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	coord, err := matchmaking.Restore(stored.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCorrupted, err)
	}
	sess := &liveSession{coord: coord, roomID: stored.ID}
	s.active[partyID] = sess
	return sess, nil
}

func (s *sessionService) publish(ctx context.Context, room *models.Room) {
	if err := s.publisher.PublishRoom(ctx, room); err != nil {
		s.logger.Error("failed to publish room update",
			slog.Int("party_id", room.PartyID),
			slog.Any("error", err))
	}
}

func (s *sessionService) rosterPlayers(ctx context.Context, partyID int) ([]models.SessionPlayer, error) {
	members, err := s.memberRepo.ListByParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for party %d: %w", partyID, err)
	}
	players := make([]models.SessionPlayer, len(members))
	for i, m := range members {
		var avatarURL *string
		if m.AvatarURL != nil && *m.AvatarURL != "" {
			url := s.uploader.GetPublicURL(*m.AvatarURL)
			avatarURL = &url
		}
		players[i] = models.SessionPlayer{
			ID:        strconv.Itoa(m.UserID),
			Name:      m.Nickname,
			AvatarURL: avatarURL,
			Level:     m.Level,
		}
	}
	return players, nil
}

func stateIsEmpty(state models.RoomState) bool {
	if len(state.Queue) > 0 {
		return false
	}
	for _, court := range state.Courts {
		if court.Current != nil {
			return false
		}
	}
	return true
}
