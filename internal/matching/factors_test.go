package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grant-scout/internal/grantsgov"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fund(v float64) *float64 { return &v }

func deadlineIn(days int) *time.Time {
	d := testNow.AddDate(0, 0, days)
	return &d
}

func TestKeywordMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		grant     *grantsgov.Grant
		interests []string
		expect    float64
	}{
		{
			name:      "no interests",
			grant:     &grantsgov.Grant{Title: "Machine Learning for Climate"},
			interests: nil,
			expect:    0,
		},
		{
			name: "phrase in title and keywords",
			grant: &grantsgov.Grant{
				Title:    "Machine Learning for Climate",
				Keywords: []string{"machine learning"},
			},
			interests: []string{"Machine Learning"},
			// two whole-word occurrences of each word, 0.2 apiece
			expect: 0.8,
		},
		{
			name: "repeated word capped per word",
			grant: &grantsgov.Grant{
				Title:       "Robotics",
				Description: "robotics robotics robotics robotics robotics robotics",
			},
			interests: []string{"robotics"},
			expect:    1,
		},
		{
			name:      "short words ignored",
			grant:     &grantsgov.Grant{Title: "AI and ML everywhere"},
			interests: []string{"ai ml"},
			expect:    0,
		},
		{
			name:      "whole words only",
			grant:     &grantsgov.Grant{Title: "particle physics"},
			interests: []string{"art"},
			expect:    0,
		},
		{
			name: "averaged across interests",
			grant: &grantsgov.Grant{
				Title: "genomics genomics genomics genomics genomics",
			},
			interests: []string{"genomics", "volcanology"},
			expect:    0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profile := &Profile{ResearchInterests: tt.interests}
			assert.InDelta(t, tt.expect, keywordMatch(tt.grant, profile, testNow), 1e-9)
		})
	}
}

func TestFundingMatch(t *testing.T) {
	t.Parallel()

	profile := &Profile{FundingRange: FundingRange{Min: 50000, Max: 500000}}

	tests := []struct {
		name   string
		grant  *grantsgov.Grant
		expect float64
	}{
		{
			name:   "no funding information is neutral",
			grant:  &grantsgov.Grant{},
			expect: 0.5,
		},
		{
			name:   "disjoint ranges",
			grant:  &grantsgov.Grant{FundingMin: fund(600000), FundingMax: fund(900000)},
			expect: 0,
		},
		{
			name:   "grant range inside preferred range",
			grant:  &grantsgov.Grant{FundingMin: fund(100000), FundingMax: fund(300000)},
			expect: 1,
		},
		{
			name:   "partial overlap",
			grant:  &grantsgov.Grant{FundingMin: fund(0), FundingMax: fund(100000)},
			expect: 0.5,
		},
		{
			name:   "single amount inside preferred range",
			grant:  &grantsgov.Grant{FundingMin: fund(200000)},
			expect: 1,
		},
		{
			name:   "single amount outside preferred range",
			grant:  &grantsgov.Grant{FundingMax: fund(10000)},
			expect: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expect, fundingMatch(tt.grant, profile, testNow), 1e-9)
		})
	}
}

func TestDeadlineMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		days   *time.Time
		buffer int
		expect float64
	}{
		{name: "no deadline is neutral", days: nil, buffer: 30, expect: 0.5},
		{name: "passed deadline", days: deadlineIn(-5), buffer: 30, expect: 0},
		{name: "optimal window", days: deadlineIn(45), buffer: 30, expect: 1},
		{name: "optimal window upper bound", days: deadlineIn(90), buffer: 30, expect: 1},
		{name: "far future", days: deadlineIn(91), buffer: 30, expect: 0.6},
		{name: "inside buffer band", days: deadlineIn(20), buffer: 14, expect: 0.8},
		{name: "below buffer", days: deadlineIn(10), buffer: 14, expect: 0.4},
		{name: "buffer band empty when buffer exceeds 30", days: deadlineIn(20), buffer: 45, expect: 0.4},
		{name: "very tight", days: deadlineIn(3), buffer: 30, expect: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant := &grantsgov.Grant{Deadline: tt.days}
			profile := &Profile{DeadlineBuffer: tt.buffer}
			assert.InDelta(t, tt.expect, deadlineMatch(grant, profile, testNow), 1e-9)
		})
	}
}

func TestDeadlineMatchCountsPartialDays(t *testing.T) {
	t.Parallel()

	// Six hours from now still counts as one day of lead time.
	deadline := testNow.Add(6 * time.Hour)
	grant := &grantsgov.Grant{Deadline: &deadline}
	assert.InDelta(t, 0.1, deadlineMatch(grant, &Profile{DeadlineBuffer: 30}, testNow), 1e-9)
}

func TestAgencyMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		agency    string
		preferred []string
		expect    float64
	}{
		{
			name:      "missing agency is neutral",
			agency:    "",
			preferred: []string{"NSF"},
			expect:    0.5,
		},
		{
			name:      "exact match",
			agency:    "National Science Foundation",
			preferred: []string{"National Science Foundation"},
			expect:    1,
		},
		{
			name:      "preferred contained in agency",
			agency:    "NSF Directorate for Engineering",
			preferred: []string{"NSF"},
			expect:    1,
		},
		{
			name:      "agency contained in preferred",
			agency:    "NSF",
			preferred: []string{"NSF Directorate for Engineering"},
			expect:    1,
		},
		{
			name:      "word overlap",
			agency:    "Science Foundation Ireland",
			preferred: []string{"National Science Foundation"},
			expect:    0.6 + 2.0/3.0*0.4,
		},
		{
			name:      "well known funder fallback",
			agency:    "Ford Foundation",
			preferred: []string{"NIH"},
			expect:    0.4,
		},
		{
			name:      "unknown agency",
			agency:    "Acme Holdings",
			preferred: []string{"NIH"},
			expect:    0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant := &grantsgov.Grant{Agency: tt.agency}
			profile := &Profile{PreferredAgencies: tt.preferred}
			assert.InDelta(t, tt.expect, agencyMatch(grant, profile, testNow), 1e-9)
		})
	}
}

func TestTypeMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		grantType string
		category  string
		preferred []string
		expect    float64
	}{
		{
			name:      "missing type and category is neutral",
			preferred: []string{"Fellowship"},
			expect:    0.5,
		},
		{
			name:      "exact type",
			grantType: "Research Grant",
			preferred: []string{"Research Grant"},
			expect:    1,
		},
		{
			name:      "category matches",
			category:  "Postdoctoral Fellowship",
			preferred: []string{"Fellowship"},
			expect:    1,
		},
		{
			name:      "word overlap",
			grantType: "Innovation Award",
			preferred: []string{"Innovation Grant"},
			expect:    0.75,
		},
		{
			name:      "no overlap",
			grantType: "Prize",
			preferred: []string{"Fellowship"},
			expect:    0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant := &grantsgov.Grant{GrantType: tt.grantType, Category: tt.category}
			profile := &Profile{PreferredGrantTypes: tt.preferred}
			assert.InDelta(t, tt.expect, typeMatch(grant, profile, testNow), 1e-9)
		})
	}
}

func TestLocationMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		grantLocation string
		userLocation  string
		expect        float64
	}{
		{name: "both missing", expect: 0.5},
		{name: "grant missing", userLocation: "United States", expect: 0.5},
		{name: "user missing", grantLocation: "Germany", expect: 0.5},
		{name: "containment", grantLocation: "Boston, USA", userLocation: "Boston", expect: 1},
		{name: "same country", grantLocation: "Cambridge, USA", userLocation: "New York, USA", expect: 0.8},
		{name: "different countries", grantLocation: "Berlin, Germany", userLocation: "Austin, USA", expect: 0.2},
		{name: "remote grant", grantLocation: "Remote", userLocation: "Tokyo, Japan", expect: 0.7},
		{name: "no signal", grantLocation: "Tokyo", userLocation: "Lagos", expect: 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant := &grantsgov.Grant{Location: tt.grantLocation}
			profile := &Profile{Location: tt.userLocation}
			assert.InDelta(t, tt.expect, locationMatch(grant, profile, testNow), 1e-9)
		})
	}
}

func TestExperienceMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		eligibility string
		level       ExperienceLevel
		expect      float64
	}{
		{
			name:        "no signals stays neutral",
			eligibility: "open to all applicants",
			level:       ExperienceIntermediate,
			expect:      0.5,
		},
		{
			name:        "own stage boost",
			eligibility: "early career faculty encouraged to apply",
			level:       ExperienceIntermediate,
			expect:      0.6,
		},
		{
			name:        "other stage penalty",
			eligibility: "senior principal investigators only",
			level:       ExperienceBeginner,
			expect:      0.4,
		},
		{
			name:        "every stage keyword present",
			eligibility: "senior principal established experienced professional researchers",
			level:       ExperienceAdvanced,
			expect:      1,
		},
		{
			name:        "cross stage substring penalty",
			eligibility: "undergraduate students welcome",
			level:       ExperienceBeginner,
			// "undergraduate" also contains "graduate", an intermediate term
			expect:      0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant := &grantsgov.Grant{Title: "Funding call", Eligibility: tt.eligibility}
			profile := &Profile{ExperienceLevel: tt.level}
			assert.InDelta(t, tt.expect, experienceMatch(grant, profile, testNow), 1e-9)
		})
	}
}
