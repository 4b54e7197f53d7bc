package ai

import (
	"context"

	"grant-scout/internal/grantsgov"
	"grant-scout/internal/matching"
)

// Summary is the structured result of summarizing a grant for a researcher.
type Summary struct {
	Headline string
	Tips     []string
	Raw      string
}

type Summarizer interface {
	Summarize(ctx context.Context, grant *grantsgov.Grant, profile *matching.Profile) (*Summary, error)
}
