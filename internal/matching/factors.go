package matching

import (
	"math"
	"regexp"
	"strings"
	"time"

	"grant-scout/internal/grantsgov"
)

// commonAgencies are recognizable funder names that earn a small boost when
// none of the preferred agencies match.
var commonAgencies = []string{"nsf", "nih", "doe", "darpa", "foundation", "institute", "university"}

// countries recognized by the location factor. Later entries win when a
// location mentions several.
var countries = []string{"usa", "united states", "canada", "uk", "united kingdom", "australia", "germany", "france"}

// experienceLevels fixes the iteration order so scoring stays deterministic.
var experienceLevels = []ExperienceLevel{
	ExperienceBeginner,
	ExperienceIntermediate,
	ExperienceAdvanced,
	ExperienceExpert,
}

// experienceKeywords maps each career stage to terms that signal a call is
// aimed at it.
var experienceKeywords = map[ExperienceLevel][]string{
	ExperienceBeginner:     {"undergraduate", "student", "entry-level", "novice", "emerging"},
	ExperienceIntermediate: {"graduate", "postdoc", "early career", "doctoral", "scholar"},
	ExperienceAdvanced:     {"senior", "principal", "established", "experienced", "professional"},
	ExperienceExpert:       {"distinguished", "emeritus", "director", "chief", "pioneer"},
}

// keywordMatch averages, over all research interests, how often the words of
// each interest occur in the grant text. Words of up to two characters are
// ignored; each whole-word occurrence adds 0.2, capped at 1 per word and at
// 1 per interest.
func keywordMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	if len(profile.ResearchInterests) == 0 {
		return 0
	}

	blob := strings.ToLower(strings.Join([]string{
		grant.Title,
		grant.Description,
		grant.Summary,
		strings.Join(grant.Keywords, " "),
	}, " "))

	total := 0.0
	for _, interest := range profile.ResearchInterests {
		interestScore := 0.0
		for _, word := range strings.Fields(strings.ToLower(interest)) {
			if len(word) <= 2 {
				continue
			}
			occurrences := countWholeWord(blob, word)
			interestScore += math.Min(float64(occurrences)*0.2, 1)
		}
		total += math.Min(interestScore, 1)
	}

	return total / float64(len(profile.ResearchInterests))
}

func countWholeWord(text, word string) int {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return len(re.FindAllStringIndex(text, -1))
}

// fundingMatch compares the grant's funding range against the preferred one.
// A grant without any funding information scores a neutral 0.5; disjoint
// ranges score 0; otherwise the score is the overlap length relative to the
// shorter of the two ranges, so a range fully contained in the other scores 1.
func fundingMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	if grant.FundingMin == nil && grant.FundingMax == nil {
		return 0.5
	}

	grantMin, grantMax := fundingBounds(grant)
	userMin, userMax := profile.FundingRange.Min, profile.FundingRange.Max

	overlapMin := math.Max(grantMin, userMin)
	overlapMax := math.Min(grantMax, userMax)
	if overlapMax < overlapMin {
		return 0
	}

	shortest := math.Min(grantMax-grantMin, userMax-userMin)
	if shortest == 0 {
		// A single-amount range inside the other one, or two coinciding
		// single amounts.
		return 1
	}

	return (overlapMax - overlapMin) / shortest
}

// fundingBounds substitutes a missing bound with the other one, collapsing
// half-open ranges into a single point.
func fundingBounds(grant *grantsgov.Grant) (float64, float64) {
	switch {
	case grant.FundingMin == nil:
		return *grant.FundingMax, *grant.FundingMax
	case grant.FundingMax == nil:
		return *grant.FundingMin, *grant.FundingMin
	default:
		return *grant.FundingMin, *grant.FundingMax
	}
}

// deadlineMatch rates the remaining lead time. The bands are evaluated in
// this exact order; when DeadlineBuffer exceeds 30 the buffer band is empty
// and grants between 7 and 30 days out fall through to the 0.4 band.
func deadlineMatch(grant *grantsgov.Grant, profile *Profile, now time.Time) float64 {
	if grant.Deadline == nil {
		return 0.5
	}

	days := daysUntil(*grant.Deadline, now)
	if days < 0 {
		return 0
	}

	switch {
	case days >= 30 && days <= 90:
		return 1
	case days >= profile.DeadlineBuffer && days < 30:
		return 0.8
	case days > 90:
		return 0.6
	case days >= 7 && days < 30:
		return 0.4
	default:
		return 0.1
	}
}

// daysUntil returns the days between now and the deadline, rounded up so any
// remaining fraction of a day still counts as a full day.
func daysUntil(deadline, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

// agencyMatch checks the grant agency against the preferred agencies: full
// containment either way wins outright, shared long words score
// proportionally, and well-known funder names keep a small floor.
func agencyMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	if grant.Agency == "" {
		return 0.5
	}

	agency := strings.ToLower(grant.Agency)

	for _, preferred := range profile.PreferredAgencies {
		p := strings.ToLower(strings.TrimSpace(preferred))
		if p == "" {
			continue
		}
		if strings.Contains(agency, p) || strings.Contains(p, agency) {
			return 1
		}
	}

	for _, preferred := range profile.PreferredAgencies {
		words := longWords(preferred)
		matched := 0
		for _, word := range words {
			if strings.Contains(agency, word) {
				matched++
			}
		}
		if matched > 0 {
			return 0.6 + float64(matched)/float64(len(words))*0.4
		}
	}

	for _, common := range commonAgencies {
		if strings.Contains(agency, common) {
			return 0.4
		}
	}

	return 0.2
}

// typeMatch scores the grant type and category text against the preferred
// grant types, analogous to agencyMatch but with a lower partial-match base.
func typeMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	if grant.GrantType == "" && grant.Category == "" {
		return 0.5
	}

	grantType := strings.ToLower(strings.TrimSpace(grant.GrantType + " " + grant.Category))

	for _, preferred := range profile.PreferredGrantTypes {
		p := strings.ToLower(strings.TrimSpace(preferred))
		if p != "" && strings.Contains(grantType, p) {
			return 1
		}
	}

	for _, preferred := range profile.PreferredGrantTypes {
		words := longWords(preferred)
		matched := 0
		for _, word := range words {
			if strings.Contains(grantType, word) {
				matched++
			}
		}
		if matched > 0 {
			return 0.5 + float64(matched)/float64(len(words))*0.5
		}
	}

	return 0.3
}

func locationMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	if grant.Location == "" || profile.Location == "" {
		return 0.5
	}

	grantLocation := strings.ToLower(grant.Location)
	userLocation := strings.ToLower(profile.Location)

	if strings.Contains(grantLocation, userLocation) || strings.Contains(userLocation, grantLocation) {
		return 1
	}

	grantCountry := resolveCountry(grantLocation)
	userCountry := resolveCountry(userLocation)
	if grantCountry != "" && userCountry != "" {
		if grantCountry == userCountry {
			return 0.8
		}
		return 0.2
	}

	for _, open := range []string{"remote", "international", "global"} {
		if strings.Contains(grantLocation, open) {
			return 0.7
		}
	}

	return 0.3
}

// resolveCountry returns the last known country mentioned in the location.
func resolveCountry(location string) string {
	resolved := ""
	for _, country := range countries {
		if strings.Contains(location, country) {
			resolved = country
		}
	}
	return resolved
}

// experienceMatch starts neutral and moves with career-stage signals found
// in the grant text: +0.1 for each term of the profile's stage, -0.05 for
// each term of any other stage.
func experienceMatch(grant *grantsgov.Grant, profile *Profile, _ time.Time) float64 {
	text := strings.ToLower(strings.Join([]string{
		grant.Title,
		grant.Description,
		grant.Summary,
		grant.Eligibility,
	}, " "))

	score := 0.5
	for _, level := range experienceLevels {
		for _, keyword := range experienceKeywords[level] {
			if !strings.Contains(text, keyword) {
				continue
			}
			if level == profile.ExperienceLevel {
				score += 0.1
			} else {
				score -= 0.05
			}
		}
	}

	return clamp01(score)
}

// longWords lowercases the phrase and drops words of up to two characters.
func longWords(phrase string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(phrase)) {
		if len(word) > 2 {
			words = append(words, word)
		}
	}
	return words
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
