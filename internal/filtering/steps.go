package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grant-scout/internal/grantsgov"
)

const skipFlagSetMsg = "skip flag is set"

type deadlineFilter struct{}

// NewDeadline creates a filter that removes grants whose deadline has already passed.
func NewDeadline() Filter {
	return &deadlineFilter{}
}

func (f *deadlineFilter) Name() string { return "deadline" }

func (f *deadlineFilter) Disable(string) {}

func (f *deadlineFilter) IsEnabled() bool { return true }

func (f *deadlineFilter) Validate(*Config) error { return nil }

func (f *deadlineFilter) Apply(_ context.Context, deps Deps, g *grantsgov.Grants) (*grantsgov.Grants, Step, error) {
	initial := g.Len()
	kept := make([]*grantsgov.Grant, 0, initial)
	var excluded []string

	for _, grant := range g.Items {
		// Grants without a deadline stay: rolling submissions are still open.
		if grant.Deadline != nil && grant.Deadline.Before(deps.Now) {
			excluded = append(excluded, grant.ID)
			continue
		}
		kept = append(kept, grant)
	}
	g.Items = kept

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding grants with passed deadlines. It is impossible to apply for them",
			zap.Strings("excluded_grants", excluded),
			zap.Int("grants_left", g.Len()),
		)
	}

	return g, Step{Initial: initial, Dropped: len(excluded), Left: g.Len()}, nil
}

func (f *deadlineFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true}
}

type historyFilter struct {
	ignore bool
}

// NewHistory creates a filter that removes grants already surfaced in previous runs.
func NewHistory(cmd *cobra.Command) Filter {
	ignore := false
	if cmd != nil {
		flag := cmd.Flag("do-not-exclude-seen")
		if flag != nil && strings.EqualFold(flag.Value.String(), "true") {
			ignore = true
		}
	}
	return &historyFilter{ignore: ignore}
}

func (f *historyFilter) Name() string { return "history" }

func (f *historyFilter) Disable(string) {}

func (f *historyFilter) IsEnabled() bool { return true }

func (f *historyFilter) Validate(*Config) error { return nil }

func (f *historyFilter) Apply(ctx context.Context, deps Deps, g *grantsgov.Grants) (*grantsgov.Grants, Step, error) {
	initial := g.Len()
	if f.ignore {
		if deps.Logger != nil {
			deps.Logger.Info("ignoring already seen grants", zap.String("reason", skipFlagSetMsg))
		}
		return g, Step{Initial: initial, Dropped: 0, Left: g.Len()}, nil
	}

	if deps.History == nil {
		if deps.Logger != nil {
			deps.Logger.Info("history store is not configured; skipping history filter")
		}
		return g, Step{Initial: initial, Dropped: 0, Left: g.Len()}, nil
	}

	ids := make([]string, 0, g.Len())
	for _, grant := range g.Items {
		ids = append(ids, grant.ID)
	}

	seen, err := deps.History.SeenIDs(ctx, ids)
	if err != nil {
		return g, Step{}, fmt.Errorf("get seen grants: %w", err)
	}

	excluded := g.Exclude(grantsgov.GrantIDField, seen)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding grants seen in previous runs",
			zap.Strings("excluded_grants", excluded),
			zap.Int("grants_left", g.Len()),
		)
	}

	return g, Step{Initial: initial, Dropped: len(excluded), Left: g.Len()}, nil
}

func (f *historyFilter) Status() Status {
	details := map[string]string{
		"exclude_seen": strconv.FormatBool(!f.ignore),
	}
	reason := ""
	if f.ignore {
		reason = "skip requested via flag"
	}
	return Status{Name: f.Name(), Enabled: true, Reason: reason, Details: details}
}

type agenciesFilter struct {
	agencies []string
}

// NewAgencies creates a filter that removes grants from agencies listed in the config.
func NewAgencies() Filter {
	return &agenciesFilter{}
}

func (f *agenciesFilter) Name() string { return "agencies" }

func (f *agenciesFilter) Disable(string) {}

func (f *agenciesFilter) IsEnabled() bool { return true }

func (f *agenciesFilter) Validate(cfg *Config) error {
	f.agencies = nil
	if cfg != nil {
		f.agencies = append(f.agencies, cfg.Agencies...)
	}
	return nil
}

func (f *agenciesFilter) Apply(_ context.Context, deps Deps, g *grantsgov.Grants) (*grantsgov.Grants, Step, error) {
	initial := g.Len()
	if len(f.agencies) == 0 {
		return g, Step{Initial: initial, Dropped: 0, Left: g.Len()}, nil
	}

	excluded := g.Exclude(grantsgov.GrantAgencyField, f.agencies)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding grants by agencies",
			zap.Strings("excluded_agencies", f.agencies),
			zap.Strings("excluded_grants", excluded),
			zap.Int("grants_left", g.Len()),
		)
	}

	return g, Step{Initial: initial, Dropped: len(excluded), Left: g.Len()}, nil
}

func (f *agenciesFilter) Status() Status {
	details := map[string]string{}
	if len(f.agencies) > 0 {
		details["agencies"] = strings.Join(f.agencies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes grants contained in exclude files.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, g *grantsgov.Grants) (*grantsgov.Grants, Step, error) {
	initial := g.Len()
	if f.path == "" {
		return g, Step{Initial: initial, Dropped: 0, Left: g.Len()}, nil
	}

	excluded, err := grantsgov.GetExcludedGrantsFromFile(f.path)
	if err != nil {
		return g, Step{}, fmt.Errorf("getting excluded grants from file: %w", err)
	}

	removed := g.Exclude(grantsgov.GrantIDField, excluded.GrantIDs())
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding grants based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_grants", removed),
			zap.Int("grants_left", g.Len()),
		)
	}

	return g, Step{Initial: initial, Dropped: len(removed), Left: g.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
