package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-scout/internal/grantsgov"
)

func testProfile() *Profile {
	return &Profile{
		ResearchInterests: []string{"Machine Learning"},
		FundingRange:      FundingRange{Min: 50000, Max: 500000},
		PreferredAgencies: []string{"NSF"},
		ExperienceLevel:   ExperienceIntermediate,
		DeadlineBuffer:    30,
	}
}

func TestFactorWeightsSumToOne(t *testing.T) {
	t.Parallel()

	sum := 0.0
	for _, f := range factorTable {
		sum += f.weight
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestScoreStrongMatch(t *testing.T) {
	t.Parallel()

	grant := &grantsgov.Grant{
		ID:         "g1",
		Title:      "Machine Learning for Climate",
		Agency:     "NSF",
		FundingMin: fund(100000),
		FundingMax: fund(300000),
		Deadline:   deadlineIn(45),
		Keywords:   []string{"machine learning"},
	}

	result := Score(grant, testProfile(), testNow)

	assert.InDelta(t, 1.0, result.Factors.Agency, 1e-9)
	assert.InDelta(t, 1.0, result.Factors.Funding, 1e-9)
	assert.InDelta(t, 1.0, result.Factors.Deadline, 1e-9)
	assert.Greater(t, result.Factors.Keyword, 0.6)
	assert.Greater(t, result.Score, 80)
	assert.LessOrEqual(t, result.Score, 100)
}

func TestScoreExplanationOrderAndRecommendations(t *testing.T) {
	t.Parallel()

	grant := &grantsgov.Grant{
		ID:         "g1",
		Title:      "Machine Learning for Climate",
		Agency:     "NSF",
		FundingMin: fund(100000),
		FundingMax: fund(300000),
		Deadline:   deadlineIn(45),
		Keywords:   []string{"machine learning"},
	}

	result := Score(grant, testProfile(), testNow)

	// One explanation per factor, in the fixed factor order.
	require.Len(t, result.Explanation, len(factorTable))

	// Type, location and experience sit at the neutral 0.5 here, so only
	// their recommendations are emitted.
	require.Len(t, result.Recommendations, 3)
	for i, f := range factorTable {
		value := factorValue(result.Factors, i)
		if value > 0.6 {
			assert.NotContains(t, result.Recommendations, f.recommendation, f.name)
		} else {
			assert.Contains(t, result.Recommendations, f.recommendation, f.name)
		}
	}
}

func factorValue(f Factors, idx int) float64 {
	return []float64{
		f.Keyword, f.Funding, f.Deadline, f.Agency, f.Type, f.Location, f.Experience,
	}[idx]
}

func TestScoreMissingOptionalFieldsAreNeutral(t *testing.T) {
	t.Parallel()

	grant := &grantsgov.Grant{ID: "bare", Title: "A call for proposals"}
	profile := testProfile()
	profile.Location = "United States"
	profile.PreferredGrantTypes = []string{"Fellowship"}

	result := Score(grant, profile, testNow)

	assert.InDelta(t, 0.5, result.Factors.Funding, 1e-9)
	assert.InDelta(t, 0.5, result.Factors.Deadline, 1e-9)
	assert.InDelta(t, 0.5, result.Factors.Agency, 1e-9)
	assert.InDelta(t, 0.5, result.Factors.Type, 1e-9)
	assert.InDelta(t, 0.5, result.Factors.Location, 1e-9)
	assert.InDelta(t, 0.5, result.Factors.Experience, 1e-9)
}

func TestScoreBoundsHold(t *testing.T) {
	t.Parallel()

	grants := []*grantsgov.Grant{
		{},
		{ID: "past", Title: "Expired call", Deadline: deadlineIn(-100)},
		{
			ID:         "rich",
			Title:      "Machine Learning for Climate",
			Agency:     "NSF",
			FundingMin: fund(100000),
			FundingMax: fund(300000),
			Deadline:   deadlineIn(45),
			Keywords:   []string{"machine learning"},
		},
	}

	for _, grant := range grants {
		result := Score(grant, testProfile(), testNow)
		assert.GreaterOrEqual(t, result.Score, 0)
		assert.LessOrEqual(t, result.Score, 100)
		for i := range factorTable {
			value := factorValue(result.Factors, i)
			assert.GreaterOrEqual(t, value, 0.0)
			assert.LessOrEqual(t, value, 1.0)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	grant := &grantsgov.Grant{
		ID:          "g1",
		Title:       "Machine Learning for Climate",
		Agency:      "Science Foundation Ireland",
		Eligibility: "early career faculty",
		Deadline:    deadlineIn(20),
		FundingMin:  fund(75000),
		FundingMax:  fund(125000),
		Location:    "Remote",
	}

	first := Score(grant, testProfile(), testNow)
	second := Score(grant, testProfile(), testNow)
	require.Equal(t, first, second)
}

func TestScoreBatchOrdering(t *testing.T) {
	t.Parallel()

	strong := &grantsgov.Grant{
		ID:         "strong",
		Title:      "Machine Learning for Climate",
		Agency:     "NSF",
		FundingMin: fund(100000),
		FundingMax: fund(300000),
		Deadline:   deadlineIn(45),
		Keywords:   []string{"machine learning"},
	}
	weak := &grantsgov.Grant{ID: "weak", Title: "Basket weaving retrospective", Agency: "Acme Holdings"}
	tieA := &grantsgov.Grant{ID: "tie-a", Title: "Quantum computing call"}
	tieB := &grantsgov.Grant{ID: "tie-b", Title: "Quantum computing call"}

	grants := &grantsgov.Grants{Items: []*grantsgov.Grant{weak, tieA, strong, tieB}}

	scored := ScoreBatch(grants, testProfile(), testNow)
	require.Len(t, scored, 4)

	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].Result.Score, scored[i].Result.Score)
	}

	assert.Equal(t, "strong", scored[0].Grant.ID)

	// Identical grants tie and keep their original relative order.
	posA, posB := -1, -1
	for i, s := range scored {
		switch s.Grant.ID {
		case "tie-a":
			posA = i
		case "tie-b":
			posB = i
		}
	}
	require.NotEqual(t, -1, posA)
	require.NotEqual(t, -1, posB)
	assert.Less(t, posA, posB)
	assert.Equal(t, scored[posA].Result.Score, scored[posB].Result.Score)
}

func TestResultSummary(t *testing.T) {
	t.Parallel()

	result := Score(&grantsgov.Grant{Title: "A call"}, testProfile(), testNow)
	summary := result.Summary()

	assert.Equal(t, result.Score, summary.Score)
	assert.Equal(t, result.Explanation, summary.Explanation)
	assert.Equal(t, result.Recommendations, summary.Recommendations)
}
