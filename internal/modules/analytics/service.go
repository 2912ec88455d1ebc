// Package analytics runs the portfolio, compliance, stress and alert engines
// against stored tapes and warehouse settings, and serves the results over HTTP.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/rampwatch/internal/archive"
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/alerts"
	"github.com/aristath/rampwatch/internal/modules/compliance"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
	"github.com/aristath/rampwatch/internal/modules/ratings"
	"github.com/aristath/rampwatch/internal/modules/stress"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	wh "github.com/aristath/rampwatch/internal/modules/warehouse"
	"github.com/aristath/rampwatch/internal/utils"
)

// ErrInvalid is wrapped by errors caused by bad caller input.
var ErrInvalid = errors.New("invalid request")

const (
	// DefaultCacheTTL bounds how long a computed report is served from cache.
	DefaultCacheTTL = time.Minute
	// sweepConcurrency caps how many warehouses are loaded at once.
	sweepConcurrency = 4
	// configuredPreset labels stress runs that use the warehouse's own parameters.
	configuredPreset = "configured"
)

// TapeStore is the tape persistence the service reads and writes.
type TapeStore interface {
	Save(s domain.Snapshot, source string) (tapes.SaveResult, error)
	Get(tapeID string) (domain.Snapshot, error)
	Delete(tapeID string) error
	Latest(warehouse string) (domain.Snapshot, error)
	History(warehouse string) ([]domain.Snapshot, error)
	Warehouses() ([]tapes.Summary, error)
}

// SettingsStore is the warehouse settings persistence.
type SettingsStore interface {
	Resolve(warehouse string) (wh.Settings, error)
	Upsert(s wh.Settings) error
	List() ([]wh.Settings, error)
}

// Archiver copies accepted tapes to object storage.
type Archiver interface {
	ArchiveTape(ctx context.Context, s domain.Snapshot) error
}

// MetricsReport is the portfolio analytics of a warehouse's latest tape.
type MetricsReport struct {
	Warehouse      string                    `json:"warehouse"`
	AsOf           time.Time                 `json:"as_of"`
	AssetCount     int                       `json:"asset_count"`
	TotalPar       float64                   `json:"total_par"`
	TotalMV        float64                   `json:"total_mv"`
	WAvgPrice      float64                   `json:"wavg_price"`
	WAvgSpread     float64                   `json:"wavg_spread"`
	WARF           float64                   `json:"warf"`
	WARFByMV       float64                   `json:"warf_by_mv"`
	DiversityScore float64                   `json:"diversity_score"`
	CCCPct         float64                   `json:"ccc_pct"`
	IssuerHHI      float64                   `json:"issuer_hhi"`
	IndustryHHI    float64                   `json:"industry_hhi"`
	SingleName     portfolio.SingleName      `json:"single_name"`
	Liens          portfolio.Liens           `json:"liens"`
	Duration       portfolio.DurationMetrics `json:"duration"`
	Coupons        portfolio.Coupons         `json:"coupons"`
	Industries     []portfolio.Exposure      `json:"industries"`
	Countries      []portfolio.Exposure      `json:"countries"`
	Tiers          []portfolio.Exposure      `json:"rating_tiers"`
}

// ComplianceReport is the compliance snapshot and limit checks of the latest tape.
type ComplianceReport struct {
	Warehouse string              `json:"warehouse"`
	AsOf      time.Time           `json:"as_of"`
	Snapshot  compliance.Snapshot `json:"snapshot"`
	Checks    []compliance.Check  `json:"checks"`
	Breaches  []compliance.Check  `json:"breaches"`
}

// AlertsReport is an alert feed with its severity tally.
type AlertsReport struct {
	Warehouses int                     `json:"warehouses"`
	Alerts     []domain.Alert          `json:"alerts"`
	Counts     map[domain.Severity]int `json:"counts"`
}

// StressReport is one stress run with the preset that produced it.
type StressReport struct {
	Preset string             `json:"preset"`
	Config domain.StressConfig `json:"stress_config"`
	stress.Results
}

// WarehouseInfo lists a warehouse known by tapes, settings or both.
type WarehouseInfo struct {
	Warehouse  string     `json:"warehouse"`
	LatestAsOf *time.Time `json:"latest_as_of,omitempty"`
	TapeCount  int        `json:"tape_count"`
	LatestPar  float64    `json:"latest_par"`
	Configured bool       `json:"configured"`
}

// Service coordinates storage and the analytics engines.
type Service struct {
	tapes    TapeStore
	settings SettingsStore
	archiver Archiver
	bus      *events.Bus
	cache    *gocache.Cache
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates the analytics service. archiver may be nil when no
// object storage is configured.
func NewService(tapeStore TapeStore, settings SettingsStore, archiver Archiver, bus *events.Bus, cacheTTL time.Duration, log zerolog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Service{
		tapes:    tapeStore,
		settings: settings,
		archiver: archiver,
		bus:      bus,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		log:      log.With().Str("service", "analytics").Logger(),
		now:      time.Now,
	}
}

func cacheKey(warehouse, kind, param string) string {
	return warehouse + "|" + kind + "|" + param
}

// cached serves kind for warehouse from the result cache, computing and
// storing it on a miss. Failed computations are not cached.
func cached[T any](s *Service, warehouse, kind, param string, compute func() (T, error)) (T, error) {
	key := cacheKey(warehouse, kind, param)
	if v, ok := s.cache.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return v.(T), nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	timer := utils.NewTimer("analytics."+kind, s.log)
	v, err := compute()
	evaluationDuration.WithLabelValues(kind).Observe(timer.Stop().Seconds())
	evaluationsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		return v, err
	}
	s.cache.SetDefault(key, v)
	return v, nil
}

// invalidate drops every cached result of warehouse.
func (s *Service) invalidate(warehouse string) {
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, warehouse+"|") {
			s.cache.Delete(key)
		}
	}
}

// load returns the latest tape and the resolved settings of a warehouse.
func (s *Service) load(warehouse string) (domain.Snapshot, wh.Settings, error) {
	snap, err := s.tapes.Latest(warehouse)
	if err != nil {
		return domain.Snapshot{}, wh.Settings{}, err
	}
	settings, err := s.settings.Resolve(warehouse)
	if err != nil {
		return domain.Snapshot{}, wh.Settings{}, err
	}
	return snap, settings, nil
}

// Settings returns the stored settings of a warehouse, or defaults.
func (s *Service) Settings(warehouse string) (wh.Settings, error) {
	return s.settings.Resolve(warehouse)
}

func byTier(a domain.Asset) string {
	return string(ratings.TierOf(a.RatingMoodys))
}

// Metrics computes the portfolio analytics of the latest tape.
func (s *Service) Metrics(warehouse string) (MetricsReport, error) {
	return cached(s, warehouse, "metrics", "", func() (MetricsReport, error) {
		snap, _, err := s.load(warehouse)
		if err != nil {
			return MetricsReport{}, err
		}
		assets := snap.Assets
		price, _ := portfolio.WeightedAvgPrice(assets)
		totalMV := 0.0
		for _, a := range assets {
			totalMV += a.MarketValue()
		}

		return MetricsReport{
			Warehouse:      warehouse,
			AsOf:           snap.AsOf,
			AssetCount:     len(assets),
			TotalPar:       snap.TotalPar(),
			TotalMV:        totalMV,
			WAvgPrice:      price,
			WAvgSpread:     portfolio.WeightedAvgSpread(assets),
			WARF:           portfolio.WARF(assets, portfolio.Par),
			WARFByMV:       portfolio.WARF(assets, portfolio.MarketValue),
			DiversityScore: portfolio.DiversityScore(assets),
			CCCPct:         portfolio.CCCPct(assets),
			IssuerHHI:      portfolio.HHI(assets, portfolio.ByIssuer, portfolio.Par),
			IndustryHHI:    portfolio.HHI(assets, portfolio.ByIndustry, portfolio.Par),
			SingleName:     portfolio.SingleNameConcentration(assets, portfolio.DefaultTopN),
			Liens:          portfolio.LienBreakdown(assets),
			Duration:       portfolio.Duration(assets, snap.AsOf),
			Coupons:        portfolio.CouponAnalytics(assets),
			Industries:     portfolio.IndustryExposure(assets),
			Countries:      portfolio.CountryConcentration(assets),
			Tiers:          portfolio.Exposures(assets, byTier, portfolio.Par),
		}, nil
	})
}

// Compliance evaluates the latest tape against the warehouse limits.
func (s *Service) Compliance(warehouse string) (ComplianceReport, error) {
	return cached(s, warehouse, "compliance", "", func() (ComplianceReport, error) {
		snap, settings, err := s.load(warehouse)
		if err != nil {
			return ComplianceReport{}, err
		}
		result := compliance.Evaluate(snap.Assets, settings.Config, settings.Facility)
		checks := result.Checks(settings.Config)
		return ComplianceReport{
			Warehouse: warehouse,
			AsOf:      snap.AsOf,
			Snapshot:  result,
			Checks:    checks,
			Breaches:  compliance.Breaches(checks),
		}, nil
	})
}

func (s *Service) alertInput(warehouse string) (alerts.Input, error) {
	snap, settings, err := s.load(warehouse)
	if err != nil {
		return alerts.Input{}, err
	}
	return alerts.Input{
		Warehouse: warehouse,
		Assets:    snap.Assets,
		Config:    settings.Config,
		Facility:  settings.Facility,
		DataDate:  snap.AsOf,
		Now:       s.now().UTC(),
	}, nil
}

// Alerts evaluates the alert rules for one warehouse.
func (s *Service) Alerts(warehouse string) (AlertsReport, error) {
	return cached(s, warehouse, "alerts", "", func() (AlertsReport, error) {
		in, err := s.alertInput(warehouse)
		if err != nil {
			return AlertsReport{}, err
		}
		feed := alerts.Evaluate(in)
		s.recordAlerts(warehouse, feed)
		return AlertsReport{Warehouses: 1, Alerts: feed, Counts: alerts.Counts(feed)}, nil
	})
}

// GlobalAlerts evaluates every warehouse that has a tape. Warehouses are
// loaded concurrently; the feed is ordered as alerts.EvaluateGlobal orders it.
// It always recomputes and is what the scheduled sweep calls.
func (s *Service) GlobalAlerts(ctx context.Context) (AlertsReport, error) {
	summaries, err := s.tapes.Warehouses()
	if err != nil {
		return AlertsReport{}, err
	}

	inputs := make([]alerts.Input, len(summaries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i, sum := range summaries {
		i, sum := i, sum
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := s.alertInput(sum.Warehouse)
			if err != nil {
				return fmt.Errorf("load %s: %w", sum.Warehouse, err)
			}
			inputs[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AlertsReport{}, err
	}

	timer := utils.NewTimer("analytics.global_alerts", s.log)
	feed := alerts.EvaluateGlobal(inputs)
	evaluationDuration.WithLabelValues("global_alerts").Observe(timer.Stop().Seconds())
	evaluationsTotal.WithLabelValues("global_alerts").Inc()

	perWarehouse := make(map[string][]domain.Alert, len(inputs))
	for _, in := range inputs {
		perWarehouse[in.Warehouse] = nil
	}
	for _, a := range feed {
		perWarehouse[a.Warehouse] = append(perWarehouse[a.Warehouse], a)
	}
	for name, list := range perWarehouse {
		s.recordAlerts(name, list)
	}

	return AlertsReport{Warehouses: len(inputs), Alerts: feed, Counts: alerts.Counts(feed)}, nil
}

func (s *Service) recordAlerts(warehouse string, feed []domain.Alert) {
	for sev, n := range alerts.Counts(feed) {
		activeAlerts.WithLabelValues(warehouse, string(sev)).Set(float64(n))
	}
}

// Watchlist flags the latest tape's problem assets.
func (s *Service) Watchlist(warehouse string) ([]domain.WatchlistEntry, error) {
	return cached(s, warehouse, "watchlist", "", func() ([]domain.WatchlistEntry, error) {
		snap, err := s.tapes.Latest(warehouse)
		if err != nil {
			return nil, err
		}
		return alerts.BuildWatchlist(warehouse, snap.Assets), nil
	})
}

// Stress runs the named preset against the latest tape. An empty preset uses
// the warehouse's configured stress parameters.
func (s *Service) Stress(warehouse, preset string) (StressReport, error) {
	label := preset
	if label == "" {
		label = configuredPreset
	}
	return cached(s, warehouse, "stress", label, func() (StressReport, error) {
		snap, settings, err := s.load(warehouse)
		if err != nil {
			return StressReport{}, err
		}
		stressCfg := settings.Config.Stress
		if preset != "" {
			var ok bool
			if stressCfg, ok = domain.Preset(preset); !ok {
				return StressReport{}, fmt.Errorf("%w: %q", stress.ErrUnknownPreset, preset)
			}
		}
		return s.runStress(snap, settings, label, stressCfg), nil
	})
}

// StressCustom runs caller-supplied stress parameters. Results are not cached.
func (s *Service) StressCustom(warehouse string, stressCfg domain.StressConfig) (StressReport, error) {
	if err := stressCfg.Validate(); err != nil {
		return StressReport{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	snap, settings, err := s.load(warehouse)
	if err != nil {
		return StressReport{}, err
	}
	timer := utils.NewTimer("analytics.stress_custom", s.log)
	report := s.runStress(snap, settings, "custom", stressCfg)
	evaluationDuration.WithLabelValues("stress_custom").Observe(timer.Stop().Seconds())
	evaluationsTotal.WithLabelValues("stress_custom").Inc()
	return report, nil
}

func (s *Service) runStress(snap domain.Snapshot, settings wh.Settings, label string, stressCfg domain.StressConfig) StressReport {
	results := stress.RunSnapshot(snap, settings.Config, stressCfg, settings.Facility)
	stressedOC.WithLabelValues(snap.Warehouse, label).Set(results.StressedOC)

	return StressReport{Preset: label, Config: stressCfg, Results: results}
}

// StressHistory stresses every stored tape with the configured parameters.
func (s *Service) StressHistory(warehouse string) ([]stress.HistoryPoint, error) {
	return cached(s, warehouse, "stress_history", "", func() ([]stress.HistoryPoint, error) {
		history, settings, err := s.history(warehouse)
		if err != nil {
			return nil, err
		}
		return stress.RunHistorical(history, settings.Config, settings.Config.Stress), nil
	})
}

// ComparePresets runs the named presets, or all of them, against the latest tape.
func (s *Service) ComparePresets(warehouse string, names []string) ([]stress.PresetResult, error) {
	return cached(s, warehouse, "presets", strings.Join(names, ","), func() ([]stress.PresetResult, error) {
		snap, settings, err := s.load(warehouse)
		if err != nil {
			return nil, err
		}
		return stress.ComparePresets(snap, settings.Config, settings.Facility, names...)
	})
}

func (s *Service) history(warehouse string) ([]domain.Snapshot, wh.Settings, error) {
	history, err := s.tapes.History(warehouse)
	if err != nil {
		return nil, wh.Settings{}, err
	}
	if len(history) == 0 {
		return nil, wh.Settings{}, tapes.ErrNotFound
	}
	settings, err := s.settings.Resolve(warehouse)
	if err != nil {
		return nil, wh.Settings{}, err
	}
	return history, settings, nil
}

// Trend returns the warehouse's funded par, price, OC and WARF per tape.
func (s *Service) Trend(warehouse string) ([]portfolio.TrendPoint, error) {
	return cached(s, warehouse, "trend", "", func() ([]portfolio.TrendPoint, error) {
		history, settings, err := s.history(warehouse)
		if err != nil {
			return nil, err
		}
		return portfolio.Trend(history, settings.Config.AdvanceRate), nil
	})
}

// Ramp measures funded par against the warehouse's ramp target.
func (s *Service) Ramp(warehouse string) (portfolio.RampProgress, error) {
	return cached(s, warehouse, "ramp", "", func() (portfolio.RampProgress, error) {
		history, settings, err := s.history(warehouse)
		if err != nil {
			return portfolio.RampProgress{}, err
		}
		progress, err := portfolio.Ramp(portfolio.Trend(history, settings.Config.AdvanceRate), settings.Config, s.now().UTC())
		if err != nil {
			return portfolio.RampProgress{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return progress, nil
	})
}

// IngestTape validates and stores a tape, then archives it when an archiver
// is configured. Archive failures are logged and do not fail the upload.
func (s *Service) IngestTape(ctx context.Context, snap domain.Snapshot, source string) (tapes.SaveResult, error) {
	result, err := s.tapes.Save(snap, source)
	if err != nil {
		outcome := "error"
		if errors.Is(err, tapes.ErrRejected) {
			outcome = "rejected"
		}
		tapesIngested.WithLabelValues(outcome).Inc()
		return result, err
	}
	tapesIngested.WithLabelValues("accepted").Inc()
	snap.TapeID = result.TapeID

	s.invalidate(snap.Warehouse)
	s.publish("tapes", &events.TapeStoredData{
		Warehouse: snap.Warehouse,
		TapeID:    result.TapeID,
		AsOf:      snap.AsOf,
		Assets:    len(snap.Assets),
		Replaced:  result.Replaced,
	})

	if s.archiver != nil {
		if err := s.archiver.ArchiveTape(ctx, snap); err != nil {
			s.log.Warn().Err(err).
				Str("warehouse", snap.Warehouse).
				Str("tape_id", result.TapeID).
				Msg("Failed to archive tape")
		} else {
			s.publish("archive", &events.TapeArchivedData{
				Warehouse: snap.Warehouse,
				TapeID:    result.TapeID,
				Key:       archive.Key(snap),
			})
		}
	}

	return result, nil
}

// Tape returns one stored tape of a warehouse. A tape owned by another
// warehouse reads as not found.
func (s *Service) Tape(warehouse, tapeID string) (domain.Snapshot, error) {
	snap, err := s.tapes.Get(tapeID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Warehouse != warehouse {
		return domain.Snapshot{}, tapes.ErrNotFound
	}
	return snap, nil
}

// DeleteTape removes one stored tape of a warehouse and drops its cached reports.
func (s *Service) DeleteTape(warehouse, tapeID string) error {
	if _, err := s.Tape(warehouse, tapeID); err != nil {
		return err
	}
	if err := s.tapes.Delete(tapeID); err != nil {
		return err
	}
	s.invalidate(warehouse)
	s.log.Info().Str("warehouse", warehouse).Str("tape_id", tapeID).Msg("Tape deleted")
	return nil
}

// UpdateSettings validates and stores a warehouse's limits and balances.
func (s *Service) UpdateSettings(settings wh.Settings, source string) error {
	if settings.Warehouse == "" {
		return fmt.Errorf("%w: warehouse name is required", ErrInvalid)
	}
	if err := settings.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if settings.Facility.CashBalance < 0 {
		return fmt.Errorf("%w: cash_balance must not be negative", ErrInvalid)
	}
	if err := s.settings.Upsert(settings); err != nil {
		return err
	}
	s.invalidate(settings.Warehouse)
	s.publish("warehouse", &events.ConfigChangedData{Warehouse: settings.Warehouse, Source: source})
	return nil
}

// Warehouses lists every warehouse with a tape or stored settings, by name.
func (s *Service) Warehouses() ([]WarehouseInfo, error) {
	summaries, err := s.tapes.Warehouses()
	if err != nil {
		return nil, err
	}
	stored, err := s.settings.List()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*WarehouseInfo, len(summaries)+len(stored))
	for _, sum := range summaries {
		asOf := sum.LatestAsOf
		byName[sum.Warehouse] = &WarehouseInfo{
			Warehouse:  sum.Warehouse,
			LatestAsOf: &asOf,
			TapeCount:  sum.TapeCount,
			LatestPar:  sum.LatestPar,
		}
	}
	for _, st := range stored {
		info, ok := byName[st.Warehouse]
		if !ok {
			info = &WarehouseInfo{Warehouse: st.Warehouse}
			byName[st.Warehouse] = info
		}
		info.Configured = true
	}

	out := make([]WarehouseInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Warehouse < out[j].Warehouse })
	return out, nil
}

func (s *Service) publish(module string, data events.EventData) {
	if s.bus != nil {
		s.bus.Publish(module, data)
	}
}
