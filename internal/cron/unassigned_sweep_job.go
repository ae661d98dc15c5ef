package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/assignment"
	"github.com/angelmondragon/leadassign-backend/internal/leads"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	defaultSweepMinAge    = 5 * time.Minute
	defaultSweepBatchSize = 100
)

// UnassignedSweepJobParams configure the job that retries leads the event
// path never assigned.
type UnassignedSweepJobParams struct {
	Logger    *logger.Logger
	Leads     unassignedLeadReader
	Assigner  leadAssigner
	MinAge    time.Duration
	BatchSize int
}

type unassignedLeadReader interface {
	ListUnassignedBefore(ctx context.Context, cutoff time.Time, after *leads.SweepCursor, limit int) ([]models.Lead, error)
}

type leadAssigner interface {
	AssignLead(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
}

// NewUnassignedSweepJob builds the sweep job.
func NewUnassignedSweepJob(params UnassignedSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Leads == nil {
		return nil, fmt.Errorf("lead reader required")
	}
	if params.Assigner == nil {
		return nil, fmt.Errorf("assigner required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultSweepMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &unassignedSweepJob{
		logg:     params.Logger,
		leads:    params.Leads,
		assigner: params.Assigner,
		minAge:   minAge,
		batch:    batch,
		now:      time.Now,
	}, nil
}

// unassignedSweepJob walks the unassigned backlog one page per tick and
// wraps to the oldest lead after a short page, so leads that can never be
// assigned do not hold every batch. The scheduler never overlaps runs.
type unassignedSweepJob struct {
	logg     *logger.Logger
	leads    unassignedLeadReader
	assigner leadAssigner
	minAge   time.Duration
	batch    int
	now      func() time.Time
	cursor   *leads.SweepCursor
}

func (j *unassignedSweepJob) Name() string { return "unassigned-lead-sweep" }

func (j *unassignedSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	page, err := j.leads.ListUnassignedBefore(ctx, cutoff, j.cursor, j.batch)
	if err != nil {
		return fmt.Errorf("list unassigned leads: %w", err)
	}

	var (
		errs       error
		assigned   int
		noEligible int
	)
	for _, lead := range page {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		result, err := j.assigner.AssignLead(ctx, assignment.AssignInput{
			LeadID:   lead.ID,
			BranchID: lead.BranchID,
		})
		switch {
		case err == nil:
			if result != nil && !result.AlreadyAssigned {
				assigned++
			}
		case assignment.IsNoEligibleCandidate(err):
			noEligible++
		default:
			errs = multierr.Append(errs, fmt.Errorf("assign lead %s: %w", lead.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"scanned":     len(page),
		"wrapped":     len(page) < j.batch,
		"assigned":    assigned,
		"no_eligible": noEligible,
		"failed":      len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "unassigned lead sweep complete")

	if len(page) < j.batch {
		j.cursor = nil
	} else {
		j.cursor = leads.CursorAfter(page[len(page)-1])
	}
	return errs
}
