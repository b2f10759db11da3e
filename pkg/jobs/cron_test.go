package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/storefront/pkg/audit"
)

type fakePruner struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakePruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

func newTestManager(p LedgerPruner, days int) (*CronManager, *bytes.Buffer) {
	var buf bytes.Buffer
	cm := NewCronManager(p, days, log.New(&buf, "", 0))
	cm.now = func() time.Time { return time.Date(2024, 6, 30, 3, 0, 0, 0, time.UTC) }
	return cm, &buf
}

func TestSetupJobs(t *testing.T) {
	cm, buf := newTestManager(&fakePruner{}, 90)

	require.NoError(t, cm.SetupJobs())
	assert.Equal(t, 1, cm.Entries())
	assert.Contains(t, buf.String(), "Cron jobs configured")
}

func TestSetupJobs_Invalid(t *testing.T) {
	cm, _ := newTestManager(nil, 90)
	assert.Error(t, cm.SetupJobs())

	cm, _ = newTestManager(&fakePruner{}, 0)
	assert.Error(t, cm.SetupJobs())
}

func TestScheduleIsDaily(t *testing.T) {
	sched, err := cron.ParseStandard(LedgerPruneSchedule)
	require.NoError(t, err)

	from := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	assert.Equal(t, time.Date(2024, 7, 1, 3, 0, 0, 0, time.UTC), next)
	assert.Equal(t, 24*time.Hour, sched.Next(next).Sub(next))
}

func TestPruneLedger_UsesRetentionWindow(t *testing.T) {
	p := &fakePruner{removed: 7}
	cm, buf := newTestManager(p, 30)

	removed, err := cm.PruneLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.Equal(t, time.Date(2024, 5, 31, 3, 0, 0, 0, time.UTC), p.cutoff)
	assert.Contains(t, buf.String(), "Pruned 7 checkout attempts")
}

func TestPruneLedger_Error(t *testing.T) {
	cm, buf := newTestManager(&fakePruner{err: errors.New("database is locked")}, 30)

	_, err := cm.PruneLedger(context.Background())
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "Failed to prune")
}

func TestPruneLedger_AgainstAuditStore(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	store := audit.NewStore(db, nil)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Record(ctx, audit.Attempt{
		SubscriptionID: "sub_old", Email: "buyer@example.com", PriceIDs: []string{"a"}, Status: "active",
	}))

	// the row was written "now"; a manager whose clock is far in the future sees it as expired
	cm := NewCronManager(store, 30, log.New(&bytes.Buffer{}, "", 0))
	cm.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }

	removed, err := cm.PruneLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, "sub_old")
	assert.ErrorIs(t, err, audit.ErrNotFound)
}

func TestStartStop(t *testing.T) {
	cm, buf := newTestManager(&fakePruner{}, 30)
	require.NoError(t, cm.SetupJobs())

	cm.Start()
	cm.Stop()
	assert.Contains(t, buf.String(), "Stopping cron scheduler")
}
