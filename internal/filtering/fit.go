package filtering

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"grant-scout/internal/grantsgov"
	"grant-scout/internal/matching"
)

type fitFilter struct {
	disabled    bool
	reason      string
	profile     *matching.Profile
	minimum     int
	excludeFile string
	results     map[string]*matching.Result
}

const belowMinimumScoreReason = "below minimum score"

// NewFit creates the scoring step. It attaches a match summary to every grant
// and drops the ones scoring below the configured minimum.
func NewFit() Filter {
	return &fitFilter{}
}

func (f *fitFilter) Name() string { return "fit" }

func (f *fitFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *fitFilter) IsEnabled() bool { return !f.disabled }

func (f *fitFilter) Validate(cfg *Config) error {
	f.profile = nil
	f.minimum = 0
	f.excludeFile = ""
	if cfg != nil {
		f.profile = cfg.Profile
		f.minimum = cfg.MinimumScore
		f.excludeFile = cfg.ExcludeFile
	}
	if !f.IsEnabled() {
		return nil
	}
	if f.profile == nil {
		return fmt.Errorf("profile is required when fit filter is enabled")
	}
	if f.minimum < 0 || f.minimum > 100 {
		return fmt.Errorf("minimum score must be between 0 and 100, got %d", f.minimum)
	}
	return nil
}

func (f *fitFilter) Apply(_ context.Context, deps Deps, g *grantsgov.Grants) (*grantsgov.Grants, Step, error) {
	initial := g.Len()

	scored := matching.ScoreBatch(g, f.profile, deps.Now)

	kept := make([]*grantsgov.Grant, 0, initial)
	dropped := &grantsgov.Grants{}
	f.results = make(map[string]*matching.Result, initial)

	for _, entry := range scored {
		entry.Grant.Match = entry.Result.Summary()
		f.results[entry.Grant.ID] = entry.Result

		if entry.Result.Score < f.minimum {
			if deps.Logger != nil {
				deps.Logger.Info("grant rejected by fit score",
					zap.String("grant_id", entry.Grant.ID),
					zap.Int("score", entry.Result.Score),
					zap.Int("minimum", f.minimum),
				)
			}
			dropped.Items = append(dropped.Items, entry.Grant)
			continue
		}

		kept = append(kept, entry.Grant)
	}

	// ScoreBatch returns grants best-first, so the surviving list is already
	// ordered by descending score.
	g.Items = kept

	if err := f.recordDropped(dropped, deps.Logger); err != nil {
		return g, Step{}, err
	}

	return g, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

// recordDropped appends rejected grants to the exclude file so the
// exclude_file step skips them on the next run.
func (f *fitFilter) recordDropped(dropped *grantsgov.Grants, logger *zap.Logger) error {
	if f.excludeFile == "" || dropped.Len() == 0 {
		return nil
	}

	excluded, err := grantsgov.GetExcludedGrantsFromFile(f.excludeFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("getting excluded grants from file: %w", err)
		}
		excluded = &grantsgov.ExcludedGrants{}
	}

	excluded.Append(dropped.ToExcluded(grantsgov.ExcludeActorFit, belowMinimumScoreReason))

	if err := excluded.ToFile(f.excludeFile); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}

	if logger != nil {
		logger.Info("recorded rejected grants in exclude file",
			zap.String("path", f.excludeFile),
			zap.Int("count", dropped.Len()),
		)
	}

	return nil
}

func (f *fitFilter) Results() map[string]*matching.Result {
	if f.results == nil {
		return map[string]*matching.Result{}
	}
	return f.results
}

func (f *fitFilter) Status() Status {
	details := map[string]string{
		"minimum_score": strconv.Itoa(f.minimum),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
