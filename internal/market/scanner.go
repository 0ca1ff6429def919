package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"ladderbot/internal/config"
	"ladderbot/pkg/types"
)

// monthNames maps Go's 1-indexed month to the lowercase name used in slugs.
var monthNames = [...]string{
	"", "january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// eventDuration is the length of one hourly market window.
const eventDuration = time.Hour

// Scanner discovers hourly Bitcoin up-or-down events by generating
// deterministic slugs from the Eastern-time top-of-hour timestamp and
// fetching each one from the Gamma API, rather than ranking an open-ended
// market list by opportunity score.
type Scanner struct {
	httpClient *resty.Client
	cfg        config.ScannerConfig
	logger     *slog.Logger

	eastern *time.Location
	active  map[string]*types.Event // keyed by slug
}

// NewScanner creates an Event Scanner pointed at the Gamma API.
func NewScanner(cfg config.Config, logger *slog.Logger) *Scanner {
	baseURL := cfg.Scanner.GammaBaseURL
	if baseURL == "" {
		baseURL = cfg.API.GammaBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	return &Scanner{
		httpClient: client,
		cfg:        cfg.Scanner,
		logger:     logger.With("component", "scanner"),
		eastern:    loc,
		active:     make(map[string]*types.Event),
	}
}

// GenerateSlug produces the deterministic event slug for an hourly window
// starting at ts, of the form "{prefix}-{month}-{day}-{h12}{am|pm}-et".
func (s *Scanner) GenerateSlug(ts time.Time) string {
	et := ts.In(s.eastern)
	month := monthNames[et.Month()]
	day := et.Day()
	hour := et.Hour()

	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	ampm := "am"
	if hour >= 12 {
		ampm = "pm"
	}

	return fmt.Sprintf("%s-%s-%d-%d%s-et", s.cfg.SlugPrefix, month, day, hour12, ampm)
}

// currentHourStart returns the start of the current hour in Eastern time,
// expressed as an absolute instant.
func currentHourStart(now time.Time, loc *time.Location) time.Time {
	et := now.In(loc)
	return time.Date(et.Year(), et.Month(), et.Day(), et.Hour(), 0, 0, 0, loc)
}

// ScanForEvents fetches events for the current hour plus a lookahead window,
// returning only the ones newly discovered this call. Already-tracked slugs
// are skipped without a fetch.
func (s *Scanner) ScanForEvents(ctx context.Context, now time.Time) ([]*types.Event, error) {
	var discovered []*types.Event

	hourStart := currentHourStart(now, s.eastern)
	for i := 0; i <= s.cfg.LookaheadHours; i++ {
		ts := hourStart.Add(time.Duration(i) * eventDuration)
		slug := s.GenerateSlug(ts)

		if _, ok := s.active[slug]; ok {
			continue
		}

		event, err := s.fetchEventBySlug(ctx, slug, ts)
		if err != nil {
			s.logger.Error("fetch event failed", "slug", slug, "error", err)
			continue
		}
		if event == nil {
			continue
		}

		s.active[slug] = event
		discovered = append(discovered, event)
		s.logger.Info("event discovered", "slug", slug, "start_time", ts)
	}

	return discovered, nil
}

// fetchEventBySlug fetches a single event by slug from the Gamma API and
// parses the first market's condition id and outcome token ids. A nil,nil
// return means the slug has no corresponding event yet (common — most
// lookahead slots have not been created by the exchange yet).
func (s *Scanner) fetchEventBySlug(ctx context.Context, slug string, startTime time.Time) (*types.Event, error) {
	var events []types.GammaEvent
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", slug, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch %s: status %d", slug, resp.StatusCode())
	}
	if len(events) == 0 {
		return nil, nil
	}

	data := events[0]
	if len(data.Markets) == 0 {
		return nil, nil
	}
	mkt := data.Markets[0]

	var tokenIDs []string
	if err := json.Unmarshal([]byte(mkt.ClobTokenIds), &tokenIDs); err != nil || len(tokenIDs) < 2 {
		s.logger.Warn("incomplete market data", "slug", slug)
		return nil, nil
	}
	if mkt.ConditionID == "" {
		s.logger.Warn("incomplete market data", "slug", slug)
		return nil, nil
	}

	event := &types.Event{
		Slug:        slug,
		ConditionID: mkt.ConditionID,
		YesTokenID:  tokenIDs[0],
		NoTokenID:   tokenIDs[1],
		StartTime:   startTime,
	}
	event.UpdatePhase(time.Now())
	return event, nil
}

// GetActiveEvents returns every currently tracked event.
func (s *Scanner) GetActiveEvents() []*types.Event {
	events := make([]*types.Event, 0, len(s.active))
	for _, e := range s.active {
		events = append(events, e)
	}
	return events
}

// RemoveEvent stops tracking an event, called once the Strategy Engine
// reports it COMPLETED.
func (s *Scanner) RemoveEvent(slug string) {
	if _, ok := s.active[slug]; ok {
		delete(s.active, slug)
		s.logger.Info("event removed", "slug", slug)
	}
}

// UpdatePhases recomputes each tracked event's phase from wall-clock time
// and returns the events that just transitioned PRE_MARKET → LIVE.
func (s *Scanner) UpdatePhases(now time.Time) []*types.Event {
	var transitioned []*types.Event
	for _, event := range s.active {
		old := event.Phase
		event.UpdatePhase(now)
		if old == types.PreMarket && event.Phase == types.Live {
			transitioned = append(transitioned, event)
			s.logger.Info("event went live", "slug", event.Slug)
		}
	}
	return transitioned
}
