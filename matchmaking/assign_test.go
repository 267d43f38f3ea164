package matchmaking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurbekov/courtside/models"
)

func leveled(id string, level models.SkillLevel) models.SessionPlayer {
	return models.SessionPlayer{ID: id, Name: id, Level: level}
}

func TestBalancedMixPairsExtremes(t *testing.T) {
	assigner, ok := AssignerFor(models.AssignBalancedMix, nil)
	require.True(t, ok)

	pool := []models.SessionPlayer{
		leveled("pro", models.LevelPro),               // weight 10
		leveled("strong", models.LevelStrong),         // weight 8
		leveled("mid", models.LevelIntermediate),      // weight 5
		leveled("beginner", models.LevelBeginner),     // weight 2
	}

	draws, leftover := assigner.Assign(pool, 1)

	require.Len(t, draws, 1)
	assert.Empty(t, leftover)
	assert.Equal(t, "pro", draws[0].Team1[0].ID)
	assert.Equal(t, "beginner", draws[0].Team1[1].ID)
	assert.Equal(t, "strong", draws[0].Team2[0].ID)
	assert.Equal(t, "mid", draws[0].Team2[1].ID)
}

func TestSplitLevelKeepsTiersTogether(t *testing.T) {
	assigner, ok := AssignerFor(models.AssignSplitLevel, nil)
	require.True(t, ok)

	pool := []models.SessionPlayer{
		leveled("b1", models.LevelBeginner),
		leveled("p1", models.LevelPro),
		leveled("m1", models.LevelIntermediate),
		leveled("s1", models.LevelStrong),
		leveled("b2", models.LevelBeginner),
		leveled("p2", models.LevelPro),
		leveled("m2", models.LevelIntermediate),
		leveled("s2", models.LevelStrong),
	}

	draws, leftover := assigner.Assign(pool, 2)

	require.Len(t, draws, 2)
	assert.Empty(t, leftover)
	// Court 1 gets the strongest four: pros against strongs.
	assert.Equal(t, []string{"p1", "p2"}, ids(draws[0].Team1))
	assert.Equal(t, []string{"s1", "s2"}, ids(draws[0].Team2))
	// Court 2 gets the rest in weight order.
	assert.Equal(t, []string{"m1", "m2"}, ids(draws[1].Team1))
	assert.Equal(t, []string{"b1", "b2"}, ids(draws[1].Team2))
}

func TestRandomAssignConservesPool(t *testing.T) {
	assigner, ok := AssignerFor(models.AssignRandom, rand.New(rand.NewSource(7)))
	require.True(t, ok)

	pool := players(10)
	draws, leftover := assigner.Assign(pool, 2)

	require.Len(t, draws, 2)
	require.Len(t, leftover, 2)

	seen := map[string]bool{}
	for _, d := range draws {
		require.Len(t, d.Team1, 2)
		require.Len(t, d.Team2, 2)
		for _, p := range append(append([]models.SessionPlayer{}, d.Team1...), d.Team2...) {
			assert.False(t, seen[p.ID], "player %s drawn twice", p.ID)
			seen[p.ID] = true
		}
	}
	for _, p := range leftover {
		assert.False(t, seen[p.ID], "leftover %s also drawn", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestAssignStopsAtCourtCount(t *testing.T) {
	assigner, ok := AssignerFor(models.AssignSplitLevel, nil)
	require.True(t, ok)

	draws, leftover := assigner.Assign(players(12), 2)

	assert.Len(t, draws, 2, "never draws more courts than exist")
	assert.Len(t, leftover, 4)
}

func TestAssignPartialCourtStaysInLeftover(t *testing.T) {
	assigner, ok := AssignerFor(models.AssignBalancedMix, nil)
	require.True(t, ok)

	draws, leftover := assigner.Assign(players(7), 2)

	assert.Len(t, draws, 1)
	assert.Len(t, leftover, 3, "fewer than four players never form a match")
}

func TestAssignerForUnknownAlgorithm(t *testing.T) {
	_, ok := AssignerFor("ladder", nil)
	assert.False(t, ok)
}

func ids(team []models.SessionPlayer) []string {
	out := make([]string, len(team))
	for i, p := range team {
		out[i] = p.ID
	}
	return out
}
