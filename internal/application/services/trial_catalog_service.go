package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/trialmatch/pkg/errors"
)

// DefaultCancerConditions are the registry searches used to build the catalog.
var DefaultCancerConditions = []string{
	"breast cancer",
	"lung cancer",
	"prostate cancer",
	"colorectal cancer",
	"pancreatic cancer",
	"ovarian cancer",
	"brain cancer",
	"liver cancer",
	"kidney cancer",
	"bladder cancer",
	"leukemia",
	"lymphoma",
	"melanoma",
}

// RefreshReport summarises a catalog refresh from a remote source.
type RefreshReport struct {
	Conditions int      `json:"conditions"`
	Fetched    int      `json:"fetched"`
	Unique     int      `json:"unique"`
	Failed     []string `json:"failed_conditions,omitempty"`
}

// CatalogInfo describes the snapshot currently served.
type CatalogInfo struct {
	Source   string    `json:"source"`
	Trials   int       `json:"trials"`
	LoadedAt time.Time `json:"loaded_at"`
}

// TrialCatalogService holds the in-memory trial snapshot. The snapshot slice
// is never modified after it is installed; Replace and Refresh swap in a new
// one, so readers may keep using a slice they already hold.
type TrialCatalogService struct {
	source       providers.TrialSource
	conditions   []string
	perCondition int
	persist      func([]entities.Trial) error
	events       providers.EventBus
	origin       string
	metrics      *observability.Metrics

	mu      sync.RWMutex
	trials  []entities.Trial
	byID    map[string]int
	info    CatalogInfo
	refresh sync.Mutex
}

// NewTrialCatalogService creates an empty catalog. source may be nil, in
// which case Refresh is unavailable.
func NewTrialCatalogService(source providers.TrialSource, perCondition int, metrics *observability.Metrics) *TrialCatalogService {
	if perCondition <= 0 {
		perCondition = 100
	}
	return &TrialCatalogService{
		source:       source,
		conditions:   DefaultCancerConditions,
		perCondition: perCondition,
		metrics:      metrics,
		byID:         map[string]int{},
	}
}

// WithConditions overrides the registry searches used by Refresh.
func (s *TrialCatalogService) WithConditions(conditions []string) *TrialCatalogService {
	s.conditions = conditions
	return s
}

// WithPersistence registers a hook that stores every refreshed snapshot,
// typically by rewriting the trial table file.
func (s *TrialCatalogService) WithPersistence(persist func([]entities.Trial) error) *TrialCatalogService {
	s.persist = persist
	return s
}

// WithEvents announces every refresh on bus so other instances sharing the
// trial table can reload it. origin identifies this instance.
func (s *TrialCatalogService) WithEvents(bus providers.EventBus, origin string) *TrialCatalogService {
	s.events = bus
	s.origin = origin
	return s
}

// Replace installs trials as the current snapshot. Rows without an NCT
// number are kept; later duplicates of a number are dropped.
func (s *TrialCatalogService) Replace(trials []entities.Trial, source string) {
	unique, byID := dedupeTrials(trials)

	s.mu.Lock()
	s.trials = unique
	s.byID = byID
	s.info = CatalogInfo{Source: source, Trials: len(unique), LoadedAt: time.Now().UTC()}
	s.mu.Unlock()
}

// Snapshot returns the current trials. The slice must not be modified.
func (s *TrialCatalogService) Snapshot() []entities.Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trials
}

// Info describes the current snapshot.
func (s *TrialCatalogService) Info() CatalogInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Get looks a trial up by NCT number, case-insensitively.
func (s *TrialCatalogService) Get(nctID string) (entities.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byID[strings.ToUpper(strings.TrimSpace(nctID))]; ok {
		return s.trials[i], nil
	}
	return entities.Trial{}, apperrors.NewNotFoundError(fmt.Sprintf("trial %s not found", nctID))
}

// Refresh fetches recruiting trials for every configured condition and swaps
// the snapshot. A condition that fails is logged and skipped; the snapshot is
// kept when nothing at all could be fetched.
func (s *TrialCatalogService) Refresh(ctx context.Context) (RefreshReport, error) {
	if s.source == nil {
		return RefreshReport{}, apperrors.NewValidationError("no remote trial source is configured")
	}
	s.refresh.Lock()
	defer s.refresh.Unlock()

	ctx, span := observability.StartSpan(ctx, "TrialCatalogService.Refresh")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	report := RefreshReport{Conditions: len(s.conditions)}
	var fetched []entities.Trial
	for _, condition := range s.conditions {
		trials, err := s.source.FetchTrials(ctx, condition, entities.StatusRecruiting, s.perCondition)
		if err != nil {
			if ctx.Err() != nil {
				return report, apperrors.NewExternalError("trial refresh cancelled", ctx.Err())
			}
			logger.Warn().Err(err).Str("condition", condition).Msg("failed to fetch trials")
			report.Failed = append(report.Failed, condition)
			continue
		}
		logger.Info().Str("condition", condition).Int("trials", len(trials)).Msg("fetched trials")
		fetched = append(fetched, trials...)
	}
	report.Fetched = len(fetched)

	if len(fetched) == 0 {
		observability.RecordError(span, fmt.Errorf("no trials fetched"))
		return report, apperrors.NewExternalError("no trials could be fetched from the registry", nil)
	}

	unique, _ := dedupeTrials(fetched)
	report.Unique = len(unique)
	observability.RecordIngestion(ctx, s.metrics, "clinicaltrials.gov", report.Unique, report.Fetched-report.Unique)

	if s.persist != nil {
		if err := s.persist(unique); err != nil {
			logger.Error().Err(err).Msg("failed to persist refreshed trials")
		}
	}
	s.Replace(unique, "clinicaltrials.gov")
	s.announce(ctx, "clinicaltrials.gov", len(unique))

	logger.Info().Int("fetched", report.Fetched).Int("unique", report.Unique).Msg("trial catalog refreshed")
	return report, nil
}

func (s *TrialCatalogService) announce(ctx context.Context, source string, trials int) {
	if s.events == nil {
		return
	}
	event := entities.NewCatalogEvent(entities.CatalogEventRefreshed, s.origin, source, trials)
	if err := s.events.Publish(ctx, providers.EventChannelCatalog, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to announce catalog refresh")
	}
}

// FollowRefreshes reloads the snapshot whenever another instance announces a
// refresh. It blocks until ctx ends or the subscription closes. A failed
// reload keeps the current snapshot.
func (s *TrialCatalogService) FollowRefreshes(ctx context.Context, reload func() ([]entities.Trial, string, error)) error {
	if s.events == nil {
		return apperrors.NewValidationError("no event bus is configured")
	}
	events, err := s.events.Subscribe(ctx, providers.EventChannelCatalog)
	if err != nil {
		return apperrors.NewExternalError("failed to subscribe to catalog events", err)
	}

	logger := observability.LoggerFromContext(ctx)
	for event := range events {
		if event.EventType != entities.CatalogEventRefreshed || event.Origin == s.origin {
			continue
		}
		trials, source, err := reload()
		if err != nil {
			logger.Error().Err(err).Str("origin", event.Origin).Msg("failed to reload announced catalog")
			continue
		}
		s.Replace(trials, source)
		logger.Info().Str("origin", event.Origin).Int("trials", len(trials)).Msg("reloaded catalog after remote refresh")
	}
	return ctx.Err()
}

// Statistics counts statuses, phases and study types in the snapshot.
func (s *TrialCatalogService) Statistics() entities.TrialStatistics {
	return TrialStatistics(s.Snapshot())
}

// TrialStatistics counts statuses, phases and study types in trials.
func TrialStatistics(trials []entities.Trial) entities.TrialStatistics {
	stats := entities.TrialStatistics{TotalTrials: len(trials)}
	for _, t := range trials {
		switch strings.ToUpper(t.Status) {
		case entities.StatusRecruiting:
			stats.RecruitingTrials++
			stats.ActiveTrials++
		case entities.StatusActiveNotRecruiting:
			stats.ActiveTrials++
		case entities.StatusCompleted:
			stats.CompletedTrials++
		}

		phases := strings.ToUpper(t.Phases)
		if strings.Contains(phases, "PHASE1") {
			stats.Phase1Trials++
		}
		if strings.Contains(phases, "PHASE2") {
			stats.Phase2Trials++
		}
		if strings.Contains(phases, "PHASE3") {
			stats.Phase3Trials++
		}

		switch strings.ToUpper(t.StudyType) {
		case "INTERVENTIONAL":
			stats.InterventionalTrials++
		case "OBSERVATIONAL":
			stats.ObservationalTrials++
		}
	}
	return stats
}

func dedupeTrials(trials []entities.Trial) ([]entities.Trial, map[string]int) {
	unique := make([]entities.Trial, 0, len(trials))
	byID := make(map[string]int, len(trials))
	for _, t := range trials {
		id := strings.ToUpper(strings.TrimSpace(t.NCTNumber))
		if id != "" {
			if _, seen := byID[id]; seen {
				continue
			}
			byID[id] = len(unique)
		}
		unique = append(unique, t)
	}
	return unique, byID
}
