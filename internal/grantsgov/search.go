package grantsgov

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	SearchPath = "/internal/grants"
)

type SearchParams struct {
	Text string `yaml:"text" gsparam:"q"`
	// gsparam is a custom tag for reflect. Please see below.
	Agencies   []string `gsparam:"agency"`
	Categories []string `gsparam:"category"`
	Status     string   `yaml:"status"`
	PerPage    string   `yaml:"per_page" mapstructure:"per_page" gsparam:"limit"`
}

// grantRecord is the wire shape returned by the search endpoint. Optional
// dates arrive as strings and are parsed into the Grant model afterwards.
type grantRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Summary     string   `json:"summary"`
	Agency      string   `json:"agency"`
	FundingMin  *float64 `json:"fundingMin"`
	FundingMax  *float64 `json:"fundingMax"`
	Currency    string   `json:"currency"`
	Deadline    string   `json:"deadline"`
	GrantType   string   `json:"grantType"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords"`
	Location    string   `json:"location"`
	Eligibility string   `json:"eligibility"`
	URL         string   `json:"url"`
}

func (c *Client) search(params *SearchParams) (*Grants, error) {
	var records []*grantRecord

	// Set limit max as possible. It should be faster.
	if params.PerPage == "" {
		params.PerPage = perPage
	}

	q := buildParams(params)
	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	items, err := c.GetItems(apiURLSearch, q)
	if err != nil {
		return nil, err
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &records,
		TagName:  "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	decoder.Decode(items)

	grants := make([]*Grant, 0, len(records))
	for _, record := range records {
		grants = append(grants, record.toGrant())
	}

	return &Grants{
		Items: grants,
	}, nil
}

func (c *Client) getGrant(id string) (*Grant, error) {
	if id == "" {
		return nil, fmt.Errorf("grant id is required")
	}

	var record grantRecord
	if err := c.getJSON(fmt.Sprintf("%s%s/%s", c.APIURL, SearchPath, id), nil, &record); err != nil {
		return nil, err
	}

	return record.toGrant(), nil
}

func (r *grantRecord) toGrant() *Grant {
	return &Grant{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Summary:     r.Summary,
		Agency:      r.Agency,
		FundingMin:  r.FundingMin,
		FundingMax:  r.FundingMax,
		Currency:    r.Currency,
		Deadline:    parseDeadline(r.Deadline),
		GrantType:   r.GrantType,
		Category:    r.Category,
		Keywords:    r.Keywords,
		Location:    r.Location,
		Eligibility: r.Eligibility,
		URL:         r.URL,
	}
}

// parseDeadline accepts the formats the backend emits. Unparseable values
// degrade to a missing deadline rather than an error.
func parseDeadline(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}

	return nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		// Our custom tag is using here.
		key := field.Tag.Get("gsparam")
		if key == "" {
			// Failover to default tag if our tag do not exist.
			key = field.Tag.Get("yaml")
		}
		kind := field.Type.Kind()
		switch kind {
		case reflect.Slice:

			s := reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface()
			switch v := s.(type) {
			case []int:
				for _, value := range v {
					q.Add(key, strconv.Itoa(value))
				}

			case []string:
				for _, value := range v {
					q.Add(key, value)
				}
			}

		default:
			value := fmt.Sprintf("%v", reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface())
			if value != "" && value != "0" {
				q.Set(key, value)
			}
		}
	}

	return q
}
