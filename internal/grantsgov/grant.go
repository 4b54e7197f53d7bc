package grantsgov

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

const (
	GrantIDField     = "ID"
	GrantAgencyField = "Agency"
)

const (
	ExcludeActorUser = "user"
	ExcludeActorFit  = "fit-filter"
)

type Grants struct {
	Items []*Grant
}

type Grant struct {
	ID          string        `json:"id,omitempty"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Agency      string        `json:"agency,omitempty"`
	FundingMin  *float64      `json:"fundingMin,omitempty"`
	FundingMax  *float64      `json:"fundingMax,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	GrantType   string        `json:"grantType,omitempty"`
	Category    string        `json:"category,omitempty"`
	Keywords    []string      `json:"keywords,omitempty"`
	Location    string        `json:"location,omitempty"`
	Eligibility string        `json:"eligibility,omitempty"`
	URL         string        `json:"url,omitempty"`
	Match       *MatchSummary `json:"match,omitempty"`
}

// MatchSummary mirrors the scorer result attached to a grant after the fit
// step. It is a separate type to keep this package free of scorer imports.
type MatchSummary struct {
	Score           int      `json:"score"`
	Explanation     []string `json:"explanation,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type ExcludedGrants struct {
	Items []*ExcludedGrant
}

type ExcludedGrant struct {
	ID         string
	URL        string
	Agency     string
	Actor      string
	Reason     string
	ExcludedAt time.Time
}

func (g *Grants) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "grants_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (g *Grants) ToExcluded(actor, reason string) *ExcludedGrants {
	excluded := &ExcludedGrants{}
	for _, grant := range g.Items {
		excluded.Items = append(excluded.Items, &ExcludedGrant{
			ID:         grant.ID,
			URL:        grant.URL,
			Agency:     grant.Agency,
			Actor:      actor,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

func GetExcludedGrantsFromFile(path string) (*ExcludedGrants, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedGrants{}, nil
	}

	var excluded ExcludedGrants
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedGrants) Append(s *ExcludedGrants) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedGrants) GrantIDs() []string {
	ids := make([]string, 0)
	for _, grant := range e.Items {
		ids = append(ids, grant.ID)
	}
	return ids
}

func (e *ExcludedGrants) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return err
	}
	return nil
}

func (g *Grant) GetStringField(name string) string {
	switch name {
	case GrantIDField:
		return g.ID
	case GrantAgencyField:
		return g.Agency

	default:
		return ""
	}
}

// FundingLabel renders the funding range for reports. Missing bounds are
// rendered as a question mark rather than zero.
func (g *Grant) FundingLabel() string {
	render := func(v *float64) string {
		if v == nil {
			return "?"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return fmt.Sprintf("%s-%s %s", render(g.FundingMin), render(g.FundingMax), g.Currency)
}

// ReportByAgency groups grants under their agency, including the attached
// match summary when the fit step ran.
func (g *Grants) ReportByAgency() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, grant := range g.Items {
		key := grant.Agency
		if key == "" {
			key = "(unknown agency)"
		}

		entry := map[string]string{
			"title":   grant.Title,
			"url":     grant.URL,
			"funding": grant.FundingLabel(),
		}

		if grant.Deadline != nil {
			entry["deadline"] = grant.Deadline.Format("2006-01-02")
		}

		if grant.Match != nil {
			entry["match_score"] = strconv.Itoa(grant.Match.Score)
			if len(grant.Match.Explanation) > 0 {
				entry["match_highlight"] = grant.Match.Explanation[0]
			}
		}

		report[key] = append(report[key], entry)
	}
	return report
}

func (g *Grants) Len() int {
	return len(g.Items)
}

func (g *Grants) FindByID(id string) *Grant {
	for _, grant := range g.Items {
		if grant.ID == id {
			return grant
		}
	}
	return nil
}

// SortByScore orders grants by descending match score. Grants without a
// match summary sink to the end. Ties keep their original order.
func (g *Grants) SortByScore() {
	sort.SliceStable(g.Items, func(i, j int) bool {
		left, right := -1, -1
		if g.Items[i].Match != nil {
			left = g.Items[i].Match.Score
		}
		if g.Items[j].Match != nil {
			right = g.Items[j].Match.Score
		}
		return left > right
	})
}

// Exclude removes every grant whose field matches one of the targets.
func (g *Grants) Exclude(name string, targets []string) []string {
	var excluded []string
	for _, target := range targets {
		for idx := 0; idx < len(g.Items); {
			if g.Items[idx].GetStringField(name) == target {
				excluded = append(excluded, g.Items[idx].ID)
				g.RemoveByIndex(idx)
				continue
			}
			idx++
		}
	}
	return excluded
}

// RemoveByIndex removes a grant from the list by index. Do not preserve order.
func (g *Grants) RemoveByIndex(idx int) {
	g.Items[idx] = g.Items[len(g.Items)-1]
	g.Items = g.Items[:len(g.Items)-1]
}
