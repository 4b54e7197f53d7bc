// Package matching computes a 0-100 compatibility score between a grant and
// a researcher profile from seven weighted factors. Scoring is pure: the
// current time is an explicit parameter and identical inputs always yield
// identical results.
package matching

import (
	"math"
	"sort"
	"time"

	"grant-scout/internal/grantsgov"
)

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
	ExperienceExpert       ExperienceLevel = "expert"
)

type FundingRange struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type Profile struct {
	ResearchInterests   []string        `mapstructure:"research-interests"`
	FundingRange        FundingRange    `mapstructure:"funding-range"`
	PreferredAgencies   []string        `mapstructure:"preferred-agencies"`
	PreferredGrantTypes []string        `mapstructure:"preferred-grant-types"`
	Location            string          `mapstructure:"location"`
	ExperienceLevel     ExperienceLevel `mapstructure:"experience-level"`
	// DeadlineBuffer is the minimum acceptable lead time before a deadline,
	// in days.
	DeadlineBuffer int `mapstructure:"deadline-buffer"`
}

// Factors holds the seven [0,1] sub-scores in their fixed order.
type Factors struct {
	Keyword    float64 `json:"keywordMatch"`
	Funding    float64 `json:"fundingMatch"`
	Deadline   float64 `json:"deadlineMatch"`
	Agency     float64 `json:"agencyMatch"`
	Type       float64 `json:"typeMatch"`
	Location   float64 `json:"locationMatch"`
	Experience float64 `json:"experienceMatch"`
}

type Result struct {
	Score           int      `json:"score"`
	Factors         Factors  `json:"factors"`
	Explanation     []string `json:"explanation"`
	Recommendations []string `json:"recommendations"`
}

// ScoredGrant is a grant augmented with its match result, as returned by
// ScoreBatch.
type ScoredGrant struct {
	Grant  *grantsgov.Grant `json:"grant"`
	Result *Result          `json:"result"`
}

type factor struct {
	name   string
	weight float64
	score  func(grant *grantsgov.Grant, profile *Profile, now time.Time) float64
	// bands holds the explanation for values >0.8, >0.6, >0.3 and the rest.
	bands [4]string
	// recommendation is emitted for the two lower bands only.
	recommendation string
}

// factorTable fixes the order, weights and messages of the seven factors in
// one place. The weights must sum to exactly 1.0.
var factorTable = [7]factor{
	{
		name:   "keyword",
		weight: 0.30,
		score:  keywordMatch,
		bands: [4]string{
			"Excellent overlap with your research interests",
			"Good overlap with your research interests",
			"Partial overlap with your research interests",
			"Limited overlap with your research interests",
		},
		recommendation: "Broaden your research interests or look for more closely related calls",
	},
	{
		name:   "funding",
		weight: 0.20,
		score:  fundingMatch,
		bands: [4]string{
			"Funding range lines up with your preferences",
			"Funding range sits largely inside your preferences",
			"Funding range only partly covers your preferences",
			"Funding range falls outside your preferences",
		},
		recommendation: "Revisit your funding range or target differently sized awards",
	},
	{
		name:   "deadline",
		weight: 0.15,
		score:  deadlineMatch,
		bands: [4]string{
			"Deadline leaves plenty of time to prepare",
			"Deadline is workable with steady planning",
			"Deadline is approaching soon",
			"Deadline is very close or already passed",
		},
		recommendation: "Start the application immediately or wait for the next round",
	},
	{
		name:   "agency",
		weight: 0.15,
		score:  agencyMatch,
		bands: [4]string{
			"Offered by one of your preferred agencies",
			"Offered by an agency close to your preferences",
			"Offered by a recognized funding source",
			"Offered by an agency outside your usual funders",
		},
		recommendation: "Read up on this agency's funding priorities before investing time",
	},
	{
		name:   "type",
		weight: 0.10,
		score:  typeMatch,
		bands: [4]string{
			"Exactly the grant type you prefer",
			"Close to your preferred grant types",
			"Loosely related to your preferred grant types",
			"Not among your preferred grant types",
		},
		recommendation: "Check whether this grant type fits your current plans",
	},
	{
		name:   "location",
		weight: 0.05,
		score:  locationMatch,
		bands: [4]string{
			"Location matches yours",
			"Location is compatible with yours",
			"Location needs some consideration",
			"Location may require travel or relocation",
		},
		recommendation: "Confirm you can meet the location requirements",
	},
	{
		name:   "experience",
		weight: 0.05,
		score:  experienceMatch,
		bands: [4]string{
			"Aimed at researchers at your career stage",
			"Suitable for your career stage",
			"May expect a somewhat different career stage",
			"Likely aimed at a different career stage",
		},
		recommendation: "Check the eligibility section against your career stage",
	},
}

func (f *factor) explain(value float64) (string, bool) {
	switch {
	case value > 0.8:
		return f.bands[0], false
	case value > 0.6:
		return f.bands[1], false
	case value > 0.3:
		return f.bands[2], true
	default:
		return f.bands[3], true
	}
}

// Score computes the match between a grant and a profile at the given
// instant. Missing optional grant fields degrade to documented neutral
// factor values, never to errors.
func Score(grant *grantsgov.Grant, profile *Profile, now time.Time) *Result {
	var values [len(factorTable)]float64
	explanation := make([]string, 0, len(factorTable))
	recommendations := make([]string, 0)

	weighted := 0.0
	for i := range factorTable {
		f := &factorTable[i]
		value := clamp01(f.score(grant, profile, now))
		values[i] = value
		weighted += value * f.weight

		text, recommend := f.explain(value)
		explanation = append(explanation, text)
		if recommend {
			recommendations = append(recommendations, f.recommendation)
		}
	}

	score := int(math.Round(weighted * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Result{
		Score: score,
		Factors: Factors{
			Keyword:    values[0],
			Funding:    values[1],
			Deadline:   values[2],
			Agency:     values[3],
			Type:       values[4],
			Location:   values[5],
			Experience: values[6],
		},
		Explanation:     explanation,
		Recommendations: recommendations,
	}
}

// ScoreBatch scores every grant and returns the results ordered by
// descending score. Ties keep the original grant order.
func ScoreBatch(grants *grantsgov.Grants, profile *Profile, now time.Time) []*ScoredGrant {
	scored := make([]*ScoredGrant, 0, grants.Len())
	for _, grant := range grants.Items {
		scored = append(scored, &ScoredGrant{
			Grant:  grant,
			Result: Score(grant, profile, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Score > scored[j].Result.Score
	})

	return scored
}

// Summary converts a result into the mirror type carried on a grant.
func (r *Result) Summary() *grantsgov.MatchSummary {
	return &grantsgov.MatchSummary{
		Score:           r.Score,
		Explanation:     r.Explanation,
		Recommendations: r.Recommendations,
	}
}
