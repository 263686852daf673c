// Package usecase contains the profile removal engine and run orchestration.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/policy"
)

// ProgressFunc is notified after each deletion attempt; done == -1 marks completion.
type ProgressFunc func(done, total int)

// Remover decides which profiles to delete and performs the deletions.
type Remover struct {
	inventory domain.InventorySource
	progress  ProgressFunc
	logger    *zap.Logger
}

// NewRemover creates a removal engine backed by an inventory source.
func NewRemover(inv domain.InventorySource, logger *zap.Logger) *Remover {
	return &Remover{
		inventory: inv,
		progress:  nil, // Set via NewRemoverWithProgress
		logger:    logger,
	}
}

// NewRemoverWithProgress creates a removal engine that reports deletion progress.
func NewRemoverWithProgress(inv domain.InventorySource, progress ProgressFunc, logger *zap.Logger) *Remover {
	return &Remover{
		inventory: inv,
		progress:  progress,
		logger:    logger,
	}
}

// ResolveKeepSids maps kept names to every SID they own in inventory.
// Names with no inventory record are returned in unmatched. Output order
// follows names, then inventory order, so repeated calls agree.
func ResolveKeepSids(names []string, inventory []domain.ProfileRecord) (sids []string, unmatched []string) {
	lookup := make(map[string][]string)
	for _, p := range inventory {
		key := policy.Fold(p.Name)
		lookup[key] = append(lookup[key], p.SecurityID)
	}

	sids = make([]string, 0)
	unmatched = make([]string, 0)
	seen := policy.NewFoldSet()

	for _, name := range names {
		owned, ok := lookup[policy.Fold(name)]
		if !ok {
			unmatched = append(unmatched, name)
			continue
		}
		for _, sid := range owned {
			if seen.Has(sid) {
				continue
			}
			seen.Add(sid)
			sids = append(sids, sid)
		}
	}
	return sids, unmatched
}

// NewKeepSpecification normalizes the requested names and resolves them
// against inventory.
func NewKeepSpecification(names []string, inventory []domain.ProfileRecord) domain.KeepSpecification {
	normalized := policy.MergeKeepNames(names)
	sids, unmatched := ResolveKeepSids(normalized, inventory)
	return domain.KeepSpecification{
		NamesToKeep:       normalized,
		SecurityIDsToKeep: sids,
		UnmatchedNames:    unmatched,
	}
}

// Classify splits profiles into removal candidates and skips.
// Precedence, first match wins: keep-by-SID, keep-by-name, system account, loaded.
func Classify(profiles []domain.ProfileRecord, keep domain.KeepSpecification) domain.RemovalPlan {
	keepSIDs := policy.NewFoldSet(keep.SecurityIDsToKeep...)
	keepNames := policy.NewFoldSet(keep.NamesToKeep...)

	plan := domain.RemovalPlan{
		ToRemove: make([]domain.ProfileRecord, 0),
		ToSkip:   make([]domain.RemovalResult, 0),
	}

	for _, p := range profiles {
		var reason domain.ReasonKind
		switch {
		case keepSIDs.Has(p.SecurityID):
			reason = domain.ReasonKeepListBySid
		case keepNames.Has(p.Name):
			reason = domain.ReasonKeepListByName
		case policy.IsSystemAccount(p.SecurityID):
			reason = domain.ReasonSystemAccount
		case p.IsLoaded:
			reason = domain.ReasonCurrentlyLoaded
		default:
			plan.ToRemove = append(plan.ToRemove, p)
			continue
		}
		plan.ToSkip = append(plan.ToSkip, domain.RemovalResult{
			Action:  domain.ActionSkipped,
			Reason:  domain.Reason(reason),
			Profile: p,
		})
	}

	return plan
}

// Execute deletes every removal candidate of plan, one at a time.
// A failed deletion becomes a RemovalFailed skip and the batch continues.
// skipped holds plan.ToSkip followed by failures in attempt order.
func (r *Remover) Execute(ctx context.Context, host string, plan domain.RemovalPlan) (removed, skipped []domain.RemovalResult) {
	start := time.Now()
	total := len(plan.ToRemove)

	removed = make([]domain.RemovalResult, 0, total)
	skipped = make([]domain.RemovalResult, 0, len(plan.ToSkip))
	skipped = append(skipped, plan.ToSkip...)

	for i, p := range plan.ToRemove {
		if err := ctx.Err(); err != nil {
			skipped = append(skipped, domain.RemovalResult{
				Action:  domain.ActionSkipped,
				Reason:  domain.RemovalFailed("not attempted: " + err.Error()),
				Profile: p,
			})
			continue
		}

		if err := r.inventory.DeleteProfile(ctx, host, p); err != nil {
			r.logger.Warn("failed to remove profile",
				zap.String("host", host),
				zap.String("profile", p.Name),
				zap.String("sid", p.SecurityID),
				zap.Error(err))
			skipped = append(skipped, domain.RemovalResult{
				Action:  domain.ActionSkipped,
				Reason:  domain.RemovalFailed(err.Error()),
				Profile: p,
			})
		} else {
			r.logger.Info("removed profile",
				zap.String("host", host),
				zap.String("profile", p.Name),
				zap.String("sid", p.SecurityID))
			removed = append(removed, domain.RemovalResult{
				Action:  domain.ActionRemoved,
				Reason:  domain.Reason(domain.ReasonRemoved),
				Profile: p,
			})
		}

		if r.progress != nil {
			r.progress(i+1, total)
		}
	}

	if r.progress != nil && total > 0 {
		r.progress(-1, total)
	}

	r.logger.Debug("removal pass finished",
		zap.String("host", host),
		zap.Int("removed", len(removed)),
		zap.Int("skipped", len(skipped)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return removed, skipped
}
