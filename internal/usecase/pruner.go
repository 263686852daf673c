package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// RunRequest is the operator's input for one removal run.
type RunRequest struct {
	Host        string
	KeepNames   []string
	DryRun      bool
	AssumeYes   bool   // skip the confirmation prompt
	Workstation string // recorded in the audit history
	Operator    string
}

// Pruner orchestrates one removal run: snapshot, classify, confirm,
// remove, re-snapshot, then log, report and persist the outcome.
type Pruner struct {
	inventory domain.InventorySource
	sink      domain.LogSink
	input     domain.InputProvider
	report    domain.ReportSink
	store     domain.RunStore
	logger    *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewPruner creates a run orchestrator. store may be nil to disable history.
func NewPruner(
	inv domain.InventorySource,
	sink domain.LogSink,
	input domain.InputProvider,
	report domain.ReportSink,
	store domain.RunStore,
	logger *zap.Logger,
) *Pruner {
	return &Pruner{
		inventory: inv,
		sink:      sink,
		input:     input,
		report:    report,
		store:     store,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Run executes a removal run against req.Host.
// Inventory failure aborts before anything is deleted. A declined
// confirmation returns domain.ErrCancelled with no side effects on the host.
func (p *Pruner) Run(ctx context.Context, req RunRequest) (*domain.RunReport, error) {
	host := strings.TrimSpace(req.Host)
	if host == "" {
		return nil, domain.ErrEmptyHost
	}

	report := &domain.RunReport{
		RunID:     p.newID(),
		Host:      host,
		DryRun:    req.DryRun,
		StartedAt: p.now(),
	}

	p.sink.AppendLine(fmt.Sprintf("run %s started against %s (dry-run: %t)", report.RunID, host, req.DryRun), domain.SeverityInfo)

	before, err := p.inventory.ListProfiles(ctx, host)
	if err != nil {
		p.sink.AppendLine(fmt.Sprintf("cannot enumerate profiles on %s: %v", host, err), domain.SeverityError)
		p.logger.Error("inventory fetch failed",
			zap.String("host", host),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInventoryUnavailable, host, err)
	}
	report.Before = before
	domain.AppendItems(p.sink, "Profiles before removal", before, domain.FormatProfile)
	p.report.Profiles("Profiles on "+host, before)

	report.Keep = NewKeepSpecification(req.KeepNames, before)
	for _, name := range report.Keep.UnmatchedNames {
		p.warn(report, fmt.Sprintf("keep-list entry %q matches no profile on %s", name, host))
	}

	report.Plan = Classify(before, report.Keep)
	domain.AppendItems(p.sink, "Planned removals", report.Plan.ToRemove, domain.FormatProfile)

	if len(report.Plan.ToRemove) == 0 {
		p.sink.AppendLine("no profiles eligible for removal", domain.SeverityInfo)
		report.Removed = make([]domain.RemovalResult, 0)
		report.Skipped = report.Plan.ToSkip
		report.After = before
		return p.finish(report, req), nil
	}

	if req.DryRun {
		p.sink.AppendLine(fmt.Sprintf("dry run: %d profile(s) would be removed", len(report.Plan.ToRemove)), domain.SeverityInfo)
		report.Removed = make([]domain.RemovalResult, 0)
		report.Skipped = report.Plan.ToSkip
		report.After = before
		p.report.Profiles("Would remove", report.Plan.ToRemove)
		return p.finish(report, req), nil
	}

	if !req.AssumeYes {
		p.report.Profiles("Will remove", report.Plan.ToRemove)
		question := fmt.Sprintf("Remove %d profile(s) from %s? This cannot be undone", len(report.Plan.ToRemove), host)
		ok, err := p.input.Confirm(question)
		if err != nil {
			return nil, fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			p.sink.AppendLine("operator declined confirmation, nothing removed", domain.SeverityWarn)
			return nil, domain.ErrCancelled
		}
	}

	remover := NewRemoverWithProgress(p.inventory, p.report.Progress, p.logger)
	report.Removed, report.Skipped = remover.Execute(ctx, host, report.Plan)

	after, err := p.inventory.ListProfiles(ctx, host)
	if err != nil {
		p.warn(report, fmt.Sprintf("cannot re-enumerate profiles on %s after removal: %v", host, err))
		report.After = make([]domain.ProfileRecord, 0)
	} else {
		report.After = after
	}

	return p.finish(report, req), nil
}

// finish logs the result sections, renders the report and persists the run.
func (p *Pruner) finish(report *domain.RunReport, req RunRequest) *domain.RunReport {
	report.FinishedAt = p.now()

	domain.AppendItems(p.sink, "Removed", report.Removed, domain.FormatResult)
	domain.AppendItems(p.sink, "Skipped", report.Skipped, domain.FormatResult)
	domain.AppendItems(p.sink, "Profiles after removal", report.After, domain.FormatProfile)

	p.report.Results("Removed", report.Removed)
	p.report.Results("Skipped", report.Skipped)
	p.report.Profiles("Remaining on "+report.Host, report.After)

	failed := countFailed(report.Skipped)
	p.sink.AppendLine(fmt.Sprintf("run %s finished: %d removed, %d skipped (%d failed)",
		report.RunID, len(report.Removed), len(report.Skipped), failed), domain.SeverityInfo)

	if p.store != nil {
		record, err := toRunRecord(report, req)
		if err == nil {
			err = p.store.SaveRun(record)
		}
		if err != nil {
			p.warn(report, fmt.Sprintf("failed to record run history: %v", err))
		}
	}

	return report
}

// warn surfaces an advisory on every channel without interrupting the run.
func (p *Pruner) warn(report *domain.RunReport, message string) {
	report.Warnings = append(report.Warnings, message)
	p.sink.AppendLine(message, domain.SeverityWarn)
	p.report.Warn(message)
	p.logger.Warn(message, zap.String("host", report.Host))
}

// RunResults is the per-profile outcome stored with a run record.
// WouldRemove is only set for dry runs.
type RunResults struct {
	Removed     []domain.RemovalResult `json:"removed"`
	Skipped     []domain.RemovalResult `json:"skipped"`
	WouldRemove []domain.ProfileRecord `json:"would_remove,omitempty"`
}

func toRunRecord(report *domain.RunReport, req RunRequest) (domain.RunRecord, error) {
	results := RunResults{Removed: report.Removed, Skipped: report.Skipped}
	if report.DryRun {
		results.WouldRemove = report.Plan.ToRemove
	}
	data, err := json.Marshal(results)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("failed to encode results: %w", err)
	}
	return domain.RunRecord{
		ID:           report.RunID,
		Host:         report.Host,
		Workstation:  req.Workstation,
		Operator:     req.Operator,
		DryRun:       report.DryRun,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		BeforeCount:  len(report.Before),
		AfterCount:   len(report.After),
		RemovedCount: len(report.Removed),
		SkippedCount: len(report.Skipped),
		FailedCount:  countFailed(report.Skipped),
		ResultsJSON:  string(data),
	}, nil
}

func countFailed(results []domain.RemovalResult) int {
	n := 0
	for _, r := range results {
		if r.Reason.Kind == domain.ReasonRemovalFailed {
			n++
		}
	}
	return n
}
