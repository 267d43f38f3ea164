package models

import "time"

// RoomSchemaVersion is stamped into every persisted snapshot. Snapshots carrying
// a different version are rejected on load instead of being trusted blindly.
const RoomSchemaVersion = 1

// MaxCourts bounds the configurable court count for a session.
const (
	MinCourts = 1
	MaxCourts = 20
)

type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelStrong       SkillLevel = "strong"
	LevelPro          SkillLevel = "pro"
)

// Weight returns the matchmaking weight of a skill level.
// Unknown or empty levels weigh 1, below beginner.
func (l SkillLevel) Weight() int {
	switch l {
	case LevelPro:
		return 10
	case LevelStrong:
		return 8
	case LevelIntermediate:
		return 5
	case LevelBeginner:
		return 2
	default:
		return 1
	}
}

func (l SkillLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelStrong, LevelPro:
		return true
	}
	return false
}

type CourtMatchStatus string

const (
	CourtMatchWaiting  CourtMatchStatus = "waiting"
	CourtMatchPlaying  CourtMatchStatus = "playing"
	CourtMatchFinished CourtMatchStatus = "finished"
)

type AssignAlgorithm string

const (
	AssignRandom      AssignAlgorithm = "random"
	AssignSplitLevel  AssignAlgorithm = "split_level"
	AssignBalancedMix AssignAlgorithm = "balanced_mix"
)

func (a AssignAlgorithm) Valid() bool {
	switch a {
	case AssignRandom, AssignSplitLevel, AssignBalancedMix:
		return true
	}
	return false
}

type RotationMode string

const (
	// RotationOut4 sends all four players back to the queue after a game.
	RotationOut4 RotationMode = "out_4"
	// RotationOut2 keeps one pair on court for at most two consecutive games.
	RotationOut2 RotationMode = "out_2"
)

func (m RotationMode) Valid() bool {
	return m == RotationOut4 || m == RotationOut2
}

// SessionPlayer is a participant token inside a running session, not a user
// account. Guests exist only inside the session they were added to.
type SessionPlayer struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	Level        SkillLevel `json:"level,omitempty"`
	RoundsPlayed int        `json:"rounds_played"`
	Wins         int        `json:"wins"`
	// LastPlayedAt is unix milliseconds; 0 means never played, which sorts
	// ahead of everyone in the fairness order.
	LastPlayedAt int64 `json:"last_played_at"`
	Paused       bool  `json:"paused"`
	Guest        bool  `json:"guest,omitempty"`
}

// CourtMatch is one occupancy of a court. A team always has exactly two
// players; a court holds at most one non-finished match.
type CourtMatch struct {
	ID        string           `json:"id"`
	CourtID   int              `json:"court_id"`
	Status    CourtMatchStatus `json:"status"`
	Team1     []SessionPlayer  `json:"team1"`
	Team2     []SessionPlayer  `json:"team2"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	Score1    *int             `json:"score1,omitempty"`
	Score2    *int             `json:"score2,omitempty"`
	// Consecutive games the pair currently in this slot has played during
	// the present occupancy. Only meaningful in out_2 rotation.
	Team1Games int `json:"team1_games"`
	Team2Games int `json:"team2_games"`
}

// Players returns the four players of the match, team1 first.
func (m *CourtMatch) Players() []SessionPlayer {
	out := make([]SessionPlayer, 0, 4)
	out = append(out, m.Team1...)
	out = append(out, m.Team2...)
	return out
}

type Court struct {
	ID      int         `json:"id"`
	Name    string      `json:"name,omitempty"`
	Current *CourtMatch `json:"current,omitempty"`
}

type SessionSettings struct {
	Algorithm    AssignAlgorithm `json:"algorithm"`
	RotationMode RotationMode    `json:"rotation_mode"`
}

// RoomState is the full court/queue/settings snapshot. It is the unit of
// synchronization: persisted wholesale on every mutation and replaced
// wholesale on every read.
type RoomState struct {
	SchemaVersion int             `json:"schema_version"`
	Courts        []Court         `json:"courts"`
	Queue         []SessionPlayer `json:"queue"`
	Settings      SessionSettings `json:"settings"`
}

type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusFinished RoomStatus = "finished"
)

// Room is the persisted aggregate: one row per session, state stored as jsonb.
type Room struct {
	ID        int        `json:"id"`
	PartyID   int        `json:"party_id"`
	Status    RoomStatus `json:"status"`
	State     RoomState  `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RankingEntry is one row of the per-party ranking view derived from a
// room snapshot.
type RankingEntry struct {
	Player SessionPlayer `json:"player"`
	Rank   int           `json:"rank"`
}
