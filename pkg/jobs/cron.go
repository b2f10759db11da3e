package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// LedgerPruneSchedule runs the retention job daily at 3 AM.
const LedgerPruneSchedule = "0 3 * * *"

const pruneTimeout = 5 * time.Minute

// LedgerPruner deletes checkout attempts older than a cutoff
type LedgerPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron      *cron.Cron
	pruner    LedgerPruner
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewCronManager creates a new cron manager that keeps retentionDays of checkout history
func NewCronManager(pruner LedgerPruner, retentionDays int, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:      cron.New(),
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if cm.pruner == nil {
		return errors.New("ledger pruner is required")
	}
	if cm.retention <= 0 {
		return errors.New("retention must be at least one day")
	}

	_, err := cm.cron.AddFunc(LedgerPruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		_, _ = cm.PruneLedger(ctx)
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - Daily at 3 AM: Prune checkout attempts older than %s", cm.retention)
	return nil
}

// PruneLedger removes checkout attempts outside the retention window
func (cm *CronManager) PruneLedger(ctx context.Context) (int64, error) {
	cm.logger.Println("🕐 Running checkout ledger retention job...")

	cutoff := cm.now().Add(-cm.retention)
	removed, err := cm.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		cm.logger.Printf("❌ Failed to prune checkout ledger: %v", err)
		return 0, err
	}

	cm.logger.Printf("✅ Pruned %d checkout attempts older than %s", removed, cutoff.Format(time.RFC3339))
	return removed, nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for a running job to finish
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	<-cm.cron.Stop().Done()
}

// Entries returns the number of scheduled jobs
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}
