package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/stress"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	wh "github.com/aristath/rampwatch/internal/modules/warehouse"
	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

type fakeArchiver struct {
	mu       sync.Mutex
	archived []domain.Snapshot
	err      error
}

func (f *fakeArchiver) ArchiveTape(_ context.Context, s domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, s)
	return nil
}

type fixture struct {
	svc      *Service
	tapes    *tapes.Repository
	settings *wh.Repository
	archiver *fakeArchiver
	bus      *events.Bus
}

var (
	jan14 = time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	jan15 = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	t.Cleanup(cleanup)

	f := &fixture{
		tapes:    tapes.NewRepository(db.Conn(), zerolog.Nop()),
		settings: wh.NewRepository(db.Conn(), zerolog.Nop()),
		archiver: &fakeArchiver{},
		bus:      events.NewBus(zerolog.Nop()),
	}
	f.svc = NewService(f.tapes, f.settings, f.archiver, f.bus, time.Hour, zerolog.Nop())
	f.svc.now = func() time.Time { return jan15 }
	return f
}

func (f *fixture) ingest(t *testing.T, s domain.Snapshot) tapes.SaveResult {
	t.Helper()
	res, err := f.svc.IngestTape(context.Background(), s, "test")
	require.NoError(t, err)
	return res
}

func TestIngestTapeStoresArchivesAndPublishes(t *testing.T) {
	f := newFixture(t)

	var got []events.EventType
	f.bus.Subscribe(events.TapeStored, func(e *events.Event) { got = append(got, e.Type) })
	f.bus.Subscribe(events.TapeArchived, func(e *events.Event) {
		got = append(got, e.Type)
		assert.Contains(t, e.Data.(*events.TapeArchivedData).Key, "tapes/WH-1/2025-01-14/")
	})

	res := f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))
	assert.NotEmpty(t, res.TapeID)
	assert.Equal(t, []events.EventType{events.TapeStored, events.TapeArchived}, got)

	require.Len(t, f.archiver.archived, 1)
	assert.Equal(t, res.TapeID, f.archiver.archived[0].TapeID)
}

func TestIngestTapeSurvivesArchiveFailure(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("bucket unavailable")

	archived := 0
	f.bus.Subscribe(events.TapeArchived, func(*events.Event) { archived++ })

	res, err := f.svc.IngestTape(context.Background(), rwtesting.NewSnapshotFixture("WH-1", jan14), "test")
	require.NoError(t, err)
	assert.NotEmpty(t, res.TapeID)
	assert.Zero(t, archived)
}

func TestIngestTapeRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	s := rwtesting.NewSnapshotFixture("WH-1", jan14)
	s.Assets[1].AssetID = s.Assets[0].AssetID

	_, err := f.svc.IngestTape(context.Background(), s, "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, tapes.ErrRejected)
	assert.Empty(t, f.archiver.archived)

	_, err = f.svc.Metrics("WH-1")
	assert.ErrorIs(t, err, tapes.ErrNotFound)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))

	m, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)
	assert.Equal(t, 8, m.AssetCount)
	assert.InDelta(t, 20_000_000, m.TotalPar, 1e-6)
	assert.Greater(t, m.TotalMV, 0.0)
	assert.Len(t, m.Industries, 4)
	require.Len(t, m.Tiers, 1)
	assert.Equal(t, "B", m.Tiers[0].Name)
	assert.InDelta(t, 1.0, m.Liens.FirstLienPct, 1e-9)
	assert.Equal(t, "Issuer A", m.SingleName.Top[0].Issuer)
}

func TestMetricsCacheInvalidatedByNewTape(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))

	first, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)

	again, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-1", jan14.AddDate(0, 0, 1)))
	updated, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)
	assert.Equal(t, 10, updated.AssetCount)
}

func TestComplianceUsesStoredSettings(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-1", jan14))

	report, err := f.svc.Compliance("WH-1")
	require.NoError(t, err)
	assert.InDelta(t, 27_000_000, report.Snapshot.FundedPar, 1e-6)
	assert.True(t, report.Snapshot.DebtEstimated)
	assert.NotEmpty(t, report.Checks)

	cfg := domain.DefaultWarehouseConfig()
	cfg.MaxCCCPct = 0.5
	require.NoError(t, f.svc.UpdateSettings(wh.Settings{
		Warehouse: "WH-1",
		Config:    cfg,
		Facility:  domain.Facility{DebtOutstanding: domain.Float(10_000_000)},
	}, "api"))

	report, err = f.svc.Compliance("WH-1")
	require.NoError(t, err)
	assert.False(t, report.Snapshot.DebtEstimated)
	assert.InDelta(t, 2.7, report.Snapshot.OCRatio, 1e-9)
}

func TestUpdateSettingsValidatesAndPublishes(t *testing.T) {
	f := newFixture(t)

	var changed []string
	f.bus.Subscribe(events.ConfigChanged, func(e *events.Event) {
		changed = append(changed, e.Data.(*events.ConfigChangedData).Warehouse)
	})

	bad := domain.DefaultWarehouseConfig()
	bad.AdvanceRate = 1.5
	err := f.svc.UpdateSettings(wh.Settings{Warehouse: "WH-1", Config: bad}, "api")
	assert.ErrorIs(t, err, ErrInvalid)

	err = f.svc.UpdateSettings(wh.Settings{Config: domain.DefaultWarehouseConfig()}, "api")
	assert.ErrorIs(t, err, ErrInvalid)

	err = f.svc.UpdateSettings(wh.Settings{
		Warehouse: "WH-1",
		Config:    domain.DefaultWarehouseConfig(),
		Facility:  domain.Facility{CashBalance: -1},
	}, "api")
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, f.svc.UpdateSettings(wh.Settings{Warehouse: "WH-1", Config: domain.DefaultWarehouseConfig()}, "api"))
	assert.Equal(t, []string{"WH-1"}, changed)
}

func TestAlertsAndWatchlist(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-1", jan14))

	report, err := f.svc.Alerts("WH-1")
	require.NoError(t, err)
	require.NotEmpty(t, report.Alerts)
	assert.Equal(t, domain.SeverityCritical, report.Alerts[0].Severity)
	assert.Positive(t, report.Counts[domain.SeverityCritical])

	watch, err := f.svc.Watchlist("WH-1")
	require.NoError(t, err)
	require.NotEmpty(t, watch)
	assert.Equal(t, "LX9001", watch[0].AssetID)
}

func TestGlobalAlerts(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-B", jan14))
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-A", jan14))
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-C", jan14))

	report, err := f.svc.GlobalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Warehouses)

	single, err := f.svc.Alerts("WH-B")
	require.NoError(t, err)
	perWarehouse := 0
	for _, a := range report.Alerts {
		if a.Warehouse == "WH-B" {
			perWarehouse++
		}
	}
	assert.Equal(t, len(single.Alerts), perWarehouse)

	for i := 1; i < len(report.Alerts); i++ {
		assert.LessOrEqual(t, report.Alerts[i-1].Severity.Rank(), report.Alerts[i].Severity.Rank())
	}
}

func TestGlobalAlertsHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-A", jan14))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.GlobalAlerts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStress(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-1", jan14))

	configured, err := f.svc.Stress("WH-1", "")
	require.NoError(t, err)
	assert.Equal(t, "configured", configured.Preset)
	assert.Equal(t, "WH-1", configured.Warehouse)
	assert.Less(t, configured.StressedOC, configured.BaseOC)

	severe, err := f.svc.Stress("WH-1", "Severe")
	require.NoError(t, err)
	assert.Equal(t, "Severe", severe.Preset)
	assert.Greater(t, severe.TotalStressedLoss, configured.TotalStressedLoss)

	_, err = f.svc.Stress("WH-1", "Apocalypse")
	assert.ErrorIs(t, err, stress.ErrUnknownPreset)
}

func TestStressCustom(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))

	cfg := domain.DefaultStressConfig()
	report, err := f.svc.StressCustom("WH-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "custom", report.Preset)

	cfg.MigrationRate = 2
	_, err = f.svc.StressCustom("WH-1", cfg)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestComparePresets(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))

	all, err := f.svc.ComparePresets("WH-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, len(domain.PresetNames()))

	two, err := f.svc.ComparePresets("WH-1", []string{"Severe", "Base"})
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "Severe", two[0].Preset)

	_, err = f.svc.ComparePresets("WH-1", []string{"Nope"})
	assert.ErrorIs(t, err, stress.ErrUnknownPreset)
}

func TestHistoryReports(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Trend("WH-1")
	assert.ErrorIs(t, err, tapes.ErrNotFound)

	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14.AddDate(0, 0, -7)))
	f.ingest(t, rwtesting.NewDistressedSnapshotFixture("WH-1", jan14))

	trend, err := f.svc.Trend("WH-1")
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.True(t, trend[0].AsOf.Before(trend[1].AsOf))
	assert.InDelta(t, 27_000_000, trend[1].FundedPar, 1e-6)

	history, err := f.svc.StressHistory("WH-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	cfg := domain.DefaultWarehouseConfig()
	cfg.TargetRampAmount = 100_000_000
	cfg.TargetCloseDate = "2025-06-30"
	require.NoError(t, f.svc.UpdateSettings(wh.Settings{Warehouse: "WH-1", Config: cfg}, "api"))

	ramp, err := f.svc.Ramp("WH-1")
	require.NoError(t, err)
	assert.True(t, ramp.HasTarget)
	assert.InDelta(t, 0.27, ramp.PctOfTarget, 1e-9)
	assert.Positive(t, ramp.DaysToClose)
}

func TestWarehousesMergesTapesAndSettings(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-B", jan14))
	require.NoError(t, f.svc.UpdateSettings(wh.Settings{Warehouse: "WH-B", Config: domain.DefaultWarehouseConfig()}, "api"))
	require.NoError(t, f.svc.UpdateSettings(wh.Settings{Warehouse: "WH-A", Config: domain.DefaultWarehouseConfig()}, "api"))

	list, err := f.svc.Warehouses()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "WH-A", list[0].Warehouse)
	assert.True(t, list[0].Configured)
	assert.Nil(t, list[0].LatestAsOf)

	assert.Equal(t, "WH-B", list[1].Warehouse)
	assert.True(t, list[1].Configured)
	require.NotNil(t, list[1].LatestAsOf)
	assert.Equal(t, jan14, *list[1].LatestAsOf)
	assert.Equal(t, 1, list[1].TapeCount)
}

func TestTapeAndDeleteTape(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14.AddDate(0, 0, -7)))
	latest := f.ingest(t, rwtesting.NewSnapshotFixture("WH-1", jan14))

	snap, err := f.svc.Tape("WH-1", latest.TapeID)
	require.NoError(t, err)
	assert.Equal(t, jan14, snap.AsOf)

	_, err = f.svc.Tape("WH-2", latest.TapeID)
	assert.ErrorIs(t, err, tapes.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteTape("WH-2", latest.TapeID), tapes.ErrNotFound)

	before, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)
	assert.Equal(t, jan14, before.AsOf)

	require.NoError(t, f.svc.DeleteTape("WH-1", latest.TapeID))
	_, err = f.svc.Tape("WH-1", latest.TapeID)
	assert.ErrorIs(t, err, tapes.ErrNotFound)

	after, err := f.svc.Metrics("WH-1")
	require.NoError(t, err)
	assert.Equal(t, jan14.AddDate(0, 0, -7), after.AsOf, "cached metrics must drop with the deleted tape")
}
