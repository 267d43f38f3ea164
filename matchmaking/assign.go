package matchmaking

import (
	"math/rand"
	"sort"

	"github.com/nurbekov/courtside/models"
)

// CourtDraw is one court's worth of a redraw: two teams of two.
type CourtDraw struct {
	Team1 []models.SessionPlayer
	Team2 []models.SessionPlayer
}

// TeamAssigner redraws a pool of players into per-court teams. Implementations
// consume four players per court in court-id order and return whatever does
// not fill a full court as leftover, in a deterministic order.
type TeamAssigner interface {
	Name() models.AssignAlgorithm
	Assign(pool []models.SessionPlayer, courtCount int) (draws []CourtDraw, leftover []models.SessionPlayer)
}

// AssignerFor maps an algorithm tag to its implementation. The rng is only
// used by the random assigner; passing a seeded source makes redraws
// reproducible in tests.
func AssignerFor(algorithm models.AssignAlgorithm, rng *rand.Rand) (TeamAssigner, bool) {
	switch algorithm {
	case models.AssignRandom:
		return &randomAssigner{rng: rng}, true
	case models.AssignSplitLevel:
		return &splitLevelAssigner{}, true
	case models.AssignBalancedMix:
		return &balancedMixAssigner{}, true
	}
	return nil, false
}

// sortByWeightDesc orders a copy of the pool by skill weight, strongest
// first. Stable, so equal weights keep their pool order.
func sortByWeightDesc(pool []models.SessionPlayer) []models.SessionPlayer {
	out := make([]models.SessionPlayer, len(pool))
	copy(out, pool)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level.Weight() > out[j].Level.Weight()
	})
	return out
}

// consumeInOrder slices an ordered pool four-at-a-time: teams are the first
// two and last two of each four.
func consumeInOrder(pool []models.SessionPlayer, courtCount int) ([]CourtDraw, []models.SessionPlayer) {
	draws := make([]CourtDraw, 0, courtCount)
	for len(draws) < courtCount && len(pool) >= 4 {
		four := pool[:4]
		pool = pool[4:]
		draws = append(draws, CourtDraw{
			Team1: []models.SessionPlayer{four[0], four[1]},
			Team2: []models.SessionPlayer{four[2], four[3]},
		})
	}
	leftover := make([]models.SessionPlayer, len(pool))
	copy(leftover, pool)
	return draws, leftover
}

// randomAssigner shuffles the pool uniformly, then fills courts in order.
type randomAssigner struct {
	rng *rand.Rand
}

func (a *randomAssigner) Name() models.AssignAlgorithm { return models.AssignRandom }

func (a *randomAssigner) Assign(pool []models.SessionPlayer, courtCount int) ([]CourtDraw, []models.SessionPlayer) {
	shuffled := make([]models.SessionPlayer, len(pool))
	copy(shuffled, pool)
	a.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return consumeInOrder(shuffled, courtCount)
}

// splitLevelAssigner concentrates similar skill on the same court: strongest
// four on court 1, next four on court 2, and so on. It does not mix high
// with low inside a match.
type splitLevelAssigner struct{}

func (a *splitLevelAssigner) Name() models.AssignAlgorithm { return models.AssignSplitLevel }

func (a *splitLevelAssigner) Assign(pool []models.SessionPlayer, courtCount int) ([]CourtDraw, []models.SessionPlayer) {
	return consumeInOrder(sortByWeightDesc(pool), courtCount)
}

// balancedMixAssigner pairs strongest with weakest: each court takes the
// current head, tail, head, tail of the weight-sorted pool, giving
// deliberately mismatched-but-balanced teams (1 strong + 1 weak per side).
type balancedMixAssigner struct{}

func (a *balancedMixAssigner) Name() models.AssignAlgorithm { return models.AssignBalancedMix }

func (a *balancedMixAssigner) Assign(pool []models.SessionPlayer, courtCount int) ([]CourtDraw, []models.SessionPlayer) {
	sorted := sortByWeightDesc(pool)

	draws := make([]CourtDraw, 0, courtCount)
	for len(draws) < courtCount && len(sorted) >= 4 {
		four := make([]models.SessionPlayer, 0, 4)
		for len(four) < 4 {
			if len(four)%2 == 0 {
				four = append(four, sorted[0])
				sorted = sorted[1:]
			} else {
				four = append(four, sorted[len(sorted)-1])
				sorted = sorted[:len(sorted)-1]
			}
		}
		draws = append(draws, CourtDraw{
			Team1: []models.SessionPlayer{four[0], four[1]},
			Team2: []models.SessionPlayer{four[2], four[3]},
		})
	}

	leftover := make([]models.SessionPlayer, len(sorted))
	copy(leftover, sorted)
	return draws, leftover
}
