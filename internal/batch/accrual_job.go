package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

// AccrualJob walks every open loan and appends the interest charges for
// any accrual periods that have elapsed since the loan was last touched.
// Accrual is idempotent per period, so re-running the job is safe.
type AccrualJob struct {
	loanRepo    loan.Repository
	loanService loan.LoanService
	logger      *slog.Logger
}

func NewAccrualJob(loanRepo loan.Repository, loanSvc loan.LoanService, logger *slog.Logger) *AccrualJob {
	if loanRepo == nil || loanSvc == nil || logger == nil {
		panic("AccrualJob dependencies cannot be nil")
	}
	return &AccrualJob{
		loanRepo:    loanRepo,
		loanService: loanSvc,
		logger:      logger.With("job", "InterestAccrual"),
	}
}

func (j *AccrualJob) Run(ctx context.Context) error {
	startTime := time.Now()
	asOf := startTime
	j.logger.InfoContext(ctx, "Starting interest accrual job.", slog.Time("as_of", asOf))

	openLoanIDs, err := j.loanRepo.GetAllOpenLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get open loan IDs, aborting job.", slog.Any("error", err))
		monitoring.RecordAccrualRun("error")
		return fmt.Errorf("cannot run job, failed to get open loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched open loan IDs.", slog.Int("count", len(openLoanIDs)))

	if len(openLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No open loans found to process.", slog.Duration("duration", time.Since(startTime)))
		monitoring.RecordAccrualRun("success")
		return nil
	}

	var wg sync.WaitGroup
	var processedCount, chargesAppended, errorCount int64

	for _, loanID := range openLoanIDs {
		wg.Add(1)
		go func(currentLoanID int64) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("loanID", currentLoanID))

			appended, accrualErr := j.loanService.RecordAccrual(ctx, currentLoanID, asOf)
			if accrualErr != nil {
				if errors.Is(accrualErr, apperrors.ErrNotFound) {
					logCtx.WarnContext(ctx, "Loan not found during accrual (closed since listing?)", slog.Any("error", accrualErr))
				} else {
					logCtx.ErrorContext(ctx, "Failed to accrue interest for loan", slog.Any("error", accrualErr))
					atomic.AddInt64(&errorCount, 1)
				}
				return
			}

			if appended > 0 {
				logCtx.InfoContext(ctx, "Appended interest charges.", slog.Int("charges", appended))
				atomic.AddInt64(&chargesAppended, int64(appended))
			} else {
				logCtx.DebugContext(ctx, "Loan already up to date, no charges appended.")
			}
			atomic.AddInt64(&processedCount, 1)
		}(loanID)
	}

	wg.Wait()
	duration := time.Since(startTime)
	summaryLog := j.logger.With(
		slog.Duration("duration", duration),
		slog.Int("total_open_loans", len(openLoanIDs)),
		slog.Int64("loans_processed", atomic.LoadInt64(&processedCount)),
		slog.Int64("charges_appended", atomic.LoadInt64(&chargesAppended)),
		slog.Int64("errors_encountered", atomic.LoadInt64(&errorCount)),
	)

	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Interest accrual job finished with errors.")
		monitoring.RecordAccrualRun("error")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Interest accrual job finished successfully.")
	monitoring.RecordAccrualRun("success")
	return nil
}
