package matchmaking

import (
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurbekov/courtside/models"
)

var (
	ErrCourtNotFound       = errors.New("court not found")
	ErrCourtOccupied       = errors.New("court already has a match")
	ErrNoCurrentMatch      = errors.New("court has no current match")
	ErrMatchNotWaiting     = errors.New("match has already started")
	ErrMatchFinished       = errors.New("match is already finished")
	ErrNotEnoughPlayers    = errors.New("not enough eligible players")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerOnCourt       = errors.New("player is currently on a court")
	ErrInvalidCourtCount   = errors.New("court count out of range")
	ErrInvalidAlgorithm    = errors.New("unknown matchmaking algorithm")
	ErrInvalidRotationMode = errors.New("unknown rotation mode")
	ErrSchemaVersion       = errors.New("unsupported room snapshot version")
	ErrEmptyName           = errors.New("player name must not be empty")
)

// Coordinator is the session state machine: courts, queue and settings for
// one running party. All operations are synchronous and guarded by a single
// mutex; persistence and fan-out happen outside, on the snapshot the caller
// takes after a mutation.
type Coordinator struct {
	mu    sync.Mutex
	state models.RoomState

	now   func() time.Time
	newID func() string
	rng   *rand.Rand
}

type Option func(*Coordinator)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides match/guest id generation, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithRand seeds the shuffle used by the random assigner, for tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

// New builds an empty coordinator with courtCount idle courts and default
// settings (random draw, all-change rotation).
func New(courtCount int, opts ...Option) (*Coordinator, error) {
	if courtCount < models.MinCourts || courtCount > models.MaxCourts {
		return nil, ErrInvalidCourtCount
	}
	courts := make([]models.Court, courtCount)
	for i := range courts {
		courts[i] = models.Court{ID: i + 1}
	}
	c := &Coordinator{
		state: models.RoomState{
			SchemaVersion: models.RoomSchemaVersion,
			Courts:        courts,
			Queue:         []models.SessionPlayer{},
			Settings: models.SessionSettings{
				Algorithm:    models.AssignRandom,
				RotationMode: models.RotationOut4,
			},
		},
	}
	c.applyDefaults(opts)
	return c, nil
}

// Restore rebuilds a coordinator from a persisted snapshot. Snapshots with a
// foreign schema version are rejected rather than trusted.
func Restore(state models.RoomState, opts ...Option) (*Coordinator, error) {
	if state.SchemaVersion != models.RoomSchemaVersion {
		return nil, ErrSchemaVersion
	}
	if len(state.Courts) < models.MinCourts || len(state.Courts) > models.MaxCourts {
		return nil, ErrInvalidCourtCount
	}
	c := &Coordinator{state: cloneState(state)}
	if !c.state.Settings.Algorithm.Valid() {
		c.state.Settings.Algorithm = models.AssignRandom
	}
	if !c.state.Settings.RotationMode.Valid() {
		c.state.Settings.RotationMode = models.RotationOut4
	}
	c.applyDefaults(opts)
	return c, nil
}

func (c *Coordinator) applyDefaults(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Snapshot returns a deep copy of the current state, safe to persist or
// serialize while the coordinator keeps mutating.
func (c *Coordinator) Snapshot() models.RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.state)
}

// SeedQueue replaces the queue wholesale. Used on session start and on an
// explicit roster refresh; both are destructive to the current queue.
func (c *Coordinator) SeedQueue(players []models.SessionPlayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Queue = clonePlayers(players)
}

// ClearCourts drops every current match without crediting anyone. Part of
// the destructive roster refresh.
func (c *Coordinator) ClearCourts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.state.Courts {
		c.state.Courts[i].Current = nil
	}
}

// AssignIdleCourts is the session-start greedy fill: only when no court
// holds a match, consume the queue four per court in FIFO order (first two
// against last two, no skill weighting). Paused players are skipped and keep
// their queue position.
func (c *Coordinator) AssignIdleCourts() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, court := range c.state.Courts {
		if court.Current != nil {
			return
		}
	}

	taken := make(map[string]bool)
	for i := range c.state.Courts {
		four := make([]models.SessionPlayer, 0, 4)
		for _, p := range c.state.Queue {
			if p.Paused || taken[p.ID] {
				continue
			}
			four = append(four, p)
			if len(four) == 4 {
				break
			}
		}
		if len(four) < 4 {
			break
		}
		for _, p := range four {
			taken[p.ID] = true
		}
		c.state.Courts[i].Current = c.newMatch(c.state.Courts[i].ID, four[:2], four[2:])
	}

	remaining := make([]models.SessionPlayer, 0, len(c.state.Queue))
	for _, p := range c.state.Queue {
		if !taken[p.ID] {
			remaining = append(remaining, p)
		}
	}
	c.state.Queue = remaining
}

// AutoAssign redraws every court from the union of all on-court players and
// the non-paused queue. Running matches are discarded, not preserved; the
// caller is expected to have confirmed that. Leftover players that cannot
// fill a court come back at the queue head, ahead of the untouched paused
// players.
func (c *Coordinator) AutoAssign(algorithm models.AssignAlgorithm) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	assigner, ok := AssignerFor(algorithm, c.rng)
	if !ok {
		return ErrInvalidAlgorithm
	}
	c.state.Settings.Algorithm = algorithm

	pool := make([]models.SessionPlayer, 0, len(c.state.Queue))
	for _, court := range c.state.Courts {
		if court.Current != nil {
			pool = append(pool, court.Current.Players()...)
		}
	}
	pool = append(pool, Eligible(c.state.Queue)...)
	paused := Paused(c.state.Queue)

	draws, leftover := assigner.Assign(pool, len(c.state.Courts))

	for i := range c.state.Courts {
		if i < len(draws) {
			c.state.Courts[i].Current = c.newMatch(c.state.Courts[i].ID, draws[i].Team1, draws[i].Team2)
		} else {
			c.state.Courts[i].Current = nil
		}
	}
	c.state.Queue = append(leftover, paused...)
	return nil
}

// FillCourt assigns the four fairest waiting players to one idle court.
func (c *Coordinator) FillCourt(courtID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	if court.Current != nil {
		return ErrCourtOccupied
	}

	eligible := ByFairness(Eligible(c.state.Queue))
	if len(eligible) < 4 {
		return ErrNotEnoughPlayers
	}

	four := eligible[:4]
	court.Current = c.newMatch(courtID, four[:2], four[2:])
	c.state.Queue = append(eligible[4:], Paused(c.state.Queue)...)
	return nil
}

// StartMatch flips a waiting match to playing and stamps the start time.
// No-op when the court is idle or the match already runs.
func (c *Coordinator) StartMatch(courtID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	if court.Current == nil || court.Current.Status != models.CourtMatchWaiting {
		return nil
	}
	started := c.now()
	court.Current.Status = models.CourtMatchPlaying
	court.Current.StartedAt = &started
	return nil
}

// FinishMatch records a result and rotates the court according to the
// session's rotation mode. Scores arrive as freeform strings; anything that
// does not parse as a number counts as 0, so a double-blank dialog finishes
// 0-0 with team1 not winning.
func (c *Coordinator) FinishMatch(courtID int, score1, score2 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	match := court.Current
	if match == nil {
		return ErrNoCurrentMatch
	}
	if match.Status == models.CourtMatchFinished {
		return ErrMatchFinished
	}

	s1 := parseScore(score1)
	s2 := parseScore(score2)
	team1Won := s1 > s2

	match.Status = models.CourtMatchFinished
	match.Score1 = &s1
	match.Score2 = &s2

	nowMS := c.now().UnixMilli()
	credit := func(players []models.SessionPlayer, won bool) []models.SessionPlayer {
		out := make([]models.SessionPlayer, len(players))
		for i, p := range players {
			p.RoundsPlayed++
			if won {
				p.Wins++
			}
			p.LastPlayedAt = nowMS
			out[i] = p
		}
		return out
	}

	team1 := credit(match.Team1, team1Won)
	team2 := credit(match.Team2, !team1Won)

	if c.state.Settings.RotationMode == models.RotationOut4 {
		c.state.Queue = append(c.state.Queue, team1...)
		c.state.Queue = append(c.state.Queue, team2...)
		court.Current = nil
		return nil
	}

	// 2-in-2-out. On the first game of an occupancy the losers leave; after
	// that, whichever pair already has a streak game leaves win or lose.
	var stay, leave []models.SessionPlayer
	stayIsTeam1 := false
	switch {
	case match.Team1Games == 0 && match.Team2Games == 0:
		if team1Won {
			stay, leave, stayIsTeam1 = team1, team2, true
		} else {
			stay, leave = team2, team1
		}
	case match.Team1Games > 0:
		stay, leave = team2, team1
	default:
		stay, leave, stayIsTeam1 = team1, team2, true
	}

	incoming := ByFairness(Eligible(c.state.Queue))
	if len(incoming) < 2 {
		// Not enough challengers: vacate the court entirely.
		c.state.Queue = append(c.state.Queue, team1...)
		c.state.Queue = append(c.state.Queue, team2...)
		court.Current = nil
		return nil
	}
	incoming = incoming[:2]

	c.state.Queue = removePlayers(c.state.Queue, incoming)
	c.state.Queue = append(c.state.Queue, leave...)

	next := &models.CourtMatch{
		ID:      c.newID(),
		CourtID: courtID,
		Status:  models.CourtMatchWaiting,
	}
	if stayIsTeam1 {
		next.Team1, next.Team1Games = stay, 1
		next.Team2 = incoming
	} else {
		next.Team2, next.Team2Games = stay, 1
		next.Team1 = incoming
	}
	court.Current = next
	return nil
}

// SwapPlayers cycles the pairing of a not-yet-started match through the
// three possible 2v2 partitions of its four players. Sorting the ids gives a
// canonical p1..p4, so repeated swaps walk p1p2/p3p4 → p1p3/p2p4 →
// p1p4/p2p3 and back.
func (c *Coordinator) SwapPlayers(courtID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	match := court.Current
	if match == nil {
		return ErrNoCurrentMatch
	}
	if match.Status != models.CourtMatchWaiting {
		return ErrMatchNotWaiting
	}

	players := match.Players()
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	p1, p2, p3, p4 := players[0], players[1], players[2], players[3]

	pair := func(a, b models.SessionPlayer) []models.SessionPlayer {
		return []models.SessionPlayer{a, b}
	}
	switch {
	case samePartition(match, p1, p2):
		match.Team1, match.Team2 = pair(p1, p3), pair(p2, p4)
	case samePartition(match, p1, p3):
		match.Team1, match.Team2 = pair(p1, p4), pair(p2, p3)
	default:
		match.Team1, match.Team2 = pair(p1, p2), pair(p3, p4)
	}
	return nil
}

// Substitute swaps a queued player into an on-court slot of a waiting match.
// The displaced player goes to the queue head, keeping priority for the
// next fill.
func (c *Coordinator) Substitute(courtID int, courtPlayerID, queuePlayerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	match := court.Current
	if match == nil {
		return ErrNoCurrentMatch
	}
	if match.Status != models.CourtMatchWaiting {
		return ErrMatchNotWaiting
	}

	queueIdx := indexOfPlayer(c.state.Queue, queuePlayerID)
	if queueIdx < 0 {
		return ErrPlayerNotFound
	}
	substitute := c.state.Queue[queueIdx]

	var displaced *models.SessionPlayer
	for _, team := range [][]models.SessionPlayer{match.Team1, match.Team2} {
		for i := range team {
			if team[i].ID == courtPlayerID {
				out := team[i]
				displaced = &out
				team[i] = substitute
			}
		}
	}
	if displaced == nil {
		return ErrPlayerNotFound
	}

	c.state.Queue = append(c.state.Queue[:queueIdx], c.state.Queue[queueIdx+1:]...)
	c.state.Queue = append([]models.SessionPlayer{*displaced}, c.state.Queue...)
	return nil
}

// SwapQueue exchanges the positions of two queued players.
func (c *Coordinator) SwapQueue(playerA, playerB string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOfPlayer(c.state.Queue, playerA)
	j := indexOfPlayer(c.state.Queue, playerB)
	if i < 0 || j < 0 {
		return ErrPlayerNotFound
	}
	c.state.Queue[i], c.state.Queue[j] = c.state.Queue[j], c.state.Queue[i]
	return nil
}

// TogglePause flips a queued player's paused flag. Stats and queue position
// stay untouched; paused players just stop being eligible for assignment.
func (c *Coordinator) TogglePause(playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOfPlayer(c.state.Queue, playerID)
	if i < 0 {
		return ErrPlayerNotFound
	}
	c.state.Queue[i].Paused = !c.state.Queue[i].Paused
	return nil
}

// SetCourtCount extends or truncates the court list. Truncation keeps the
// historical behavior of the app: any match on a removed court is discarded
// together with its players, they do NOT come back to the queue.
func (c *Coordinator) SetCourtCount(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < models.MinCourts || n > models.MaxCourts {
		return ErrInvalidCourtCount
	}
	if n <= len(c.state.Courts) {
		c.state.Courts = c.state.Courts[:n]
		return nil
	}
	for id := len(c.state.Courts) + 1; id <= n; id++ {
		c.state.Courts = append(c.state.Courts, models.Court{ID: id})
	}
	return nil
}

// RenameCourt sets a court's display name.
func (c *Coordinator) RenameCourt(courtID int, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	court := c.findCourt(courtID)
	if court == nil {
		return ErrCourtNotFound
	}
	court.Name = strings.TrimSpace(name)
	return nil
}

func (c *Coordinator) SetRotationMode(mode models.RotationMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !mode.Valid() {
		return ErrInvalidRotationMode
	}
	c.state.Settings.RotationMode = mode
	return nil
}

func (c *Coordinator) SetAlgorithm(algorithm models.AssignAlgorithm) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !algorithm.Valid() {
		return ErrInvalidAlgorithm
	}
	c.state.Settings.Algorithm = algorithm
	return nil
}

// Reset clears every court and zeroes every counter, rebuilding the queue
// from all present players. Paused flags survive; only stats reset.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	players := make([]models.SessionPlayer, 0, len(c.state.Queue))
	for i := range c.state.Courts {
		if c.state.Courts[i].Current != nil {
			players = append(players, c.state.Courts[i].Current.Players()...)
			c.state.Courts[i].Current = nil
		}
	}
	players = append(players, c.state.Queue...)

	for i := range players {
		players[i].RoundsPlayed = 0
		players[i].Wins = 0
		players[i].LastPlayedAt = 0
	}
	c.state.Queue = players
}

// AddGuest appends an ad-hoc player to the queue tail. Guests live only
// inside this session.
func (c *Coordinator) AddGuest(name string, level models.SkillLevel) (models.SessionPlayer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return models.SessionPlayer{}, ErrEmptyName
	}
	guest := models.SessionPlayer{
		ID:    c.newID(),
		Name:  name,
		Level: level,
		Guest: true,
	}
	c.state.Queue = append(c.state.Queue, guest)
	return guest, nil
}

// RemovePlayer drops a player from the queue. On-court players must be
// substituted out first.
func (c *Coordinator) RemovePlayer(playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, court := range c.state.Courts {
		if court.Current == nil {
			continue
		}
		for _, p := range court.Current.Players() {
			if p.ID == playerID {
				return ErrPlayerOnCourt
			}
		}
	}
	i := indexOfPlayer(c.state.Queue, playerID)
	if i < 0 {
		return ErrPlayerNotFound
	}
	c.state.Queue = append(c.state.Queue[:i], c.state.Queue[i+1:]...)
	return nil
}

func (c *Coordinator) newMatch(courtID int, team1, team2 []models.SessionPlayer) *models.CourtMatch {
	return &models.CourtMatch{
		ID:      c.newID(),
		CourtID: courtID,
		Status:  models.CourtMatchWaiting,
		Team1:   clonePlayers(team1),
		Team2:   clonePlayers(team2),
	}
}

func (c *Coordinator) findCourt(courtID int) *models.Court {
	for i := range c.state.Courts {
		if c.state.Courts[i].ID == courtID {
			return &c.state.Courts[i]
		}
	}
	return nil
}

// parseScore coerces a freeform score field to a non-negative int. Empty or
// unparseable input counts as 0.
func parseScore(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// samePartition reports whether {a, b} form one of the match's current
// teams (in either slot).
func samePartition(match *models.CourtMatch, a, b models.SessionPlayer) bool {
	isPair := func(team []models.SessionPlayer) bool {
		if len(team) != 2 {
			return false
		}
		return (team[0].ID == a.ID && team[1].ID == b.ID) ||
			(team[0].ID == b.ID && team[1].ID == a.ID)
	}
	return isPair(match.Team1) || isPair(match.Team2)
}

func indexOfPlayer(players []models.SessionPlayer, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func removePlayers(players []models.SessionPlayer, drop []models.SessionPlayer) []models.SessionPlayer {
	dropSet := make(map[string]bool, len(drop))
	for _, p := range drop {
		dropSet[p.ID] = true
	}
	out := make([]models.SessionPlayer, 0, len(players))
	for _, p := range players {
		if !dropSet[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func clonePlayers(players []models.SessionPlayer) []models.SessionPlayer {
	out := make([]models.SessionPlayer, len(players))
	copy(out, players)
	return out
}

func cloneMatch(m *models.CourtMatch) *models.CourtMatch {
	if m == nil {
		return nil
	}
	out := *m
	out.Team1 = clonePlayers(m.Team1)
	out.Team2 = clonePlayers(m.Team2)
	if m.StartedAt != nil {
		t := *m.StartedAt
		out.StartedAt = &t
	}
	if m.Score1 != nil {
		s := *m.Score1
		out.Score1 = &s
	}
	if m.Score2 != nil {
		s := *m.Score2
		out.Score2 = &s
	}
	return &out
}

func cloneState(state models.RoomState) models.RoomState {
	out := state
	out.Courts = make([]models.Court, len(state.Courts))
	for i, court := range state.Courts {
		out.Courts[i] = court
		out.Courts[i].Current = cloneMatch(court.Current)
	}
	out.Queue = clonePlayers(state.Queue)
	return out
}
