// Package publish turns stored form configurations into deployed booking
// pages: load, normalize, snapshot busy slots, assemble, hash, deploy and
// announce.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yoyaku/internal/availability"
	"yoyaku/internal/deploy"
	"yoyaku/internal/document"
	"yoyaku/internal/events"
	"yoyaku/internal/formconfig"
	"yoyaku/internal/metrics"
	"yoyaku/internal/store"
)

// FormStore is the persistence the service needs.
type FormStore interface {
	GetForm(ctx context.Context, id string) (*store.Form, error)
	SaveForm(ctx context.Context, id, name string, config []byte) (*store.Form, error)
	MarkPublished(ctx context.Context, id, hash, publicURL, proxyURL string, at time.Time) error
}

// Result describes one publish call.
type Result struct {
	FormID    string `json:"form_id"`
	Hash      string `json:"hash"`
	PublicURL string `json:"public_url"`
	ProxyURL  string `json:"proxy_url,omitempty"`
	Bytes     int    `json:"bytes"`
	// Skipped is true when the rendered page matched the last deployed one.
	Skipped bool `json:"skipped"`
}

// SaveResult describes one save call.
type SaveResult struct {
	Form     *store.Form
	Problems []string
}

type Service struct {
	forms    FormStore
	deployer deploy.Deployer
	hashes   HashStore
	bus      *events.EventBus
	logger   *zerolog.Logger

	checker  availability.Checker
	location *time.Location
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(forms FormStore, deployer deploy.Deployer, bus *events.EventBus, logger *zerolog.Logger) *Service {
	return &Service{
		forms:    forms,
		deployer: deployer,
		hashes:   NewMemoryHashes(),
		bus:      bus,
		logger:   logger,
		location: time.Local,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// UseHashStore replaces the in-memory deployed-hash store.
func (s *Service) UseHashStore(h HashStore) {
	s.hashes = h
}

// UseChecker enables the busy-slot snapshot. Dates are evaluated in loc.
func (s *Service) UseChecker(checker availability.Checker, loc *time.Location) {
	s.checker = checker
	if loc != nil {
		s.location = loc
	}
}

func (s *Service) formLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Save stores an authored configuration. The document must be a JSON object;
// sections that fail to decode are stored as written and reported as problems.
func (s *Service) Save(ctx context.Context, id string, raw []byte) (*SaveResult, error) {
	in, err := formconfig.Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg := formconfig.Normalize(in)

	form, err := s.forms.SaveForm(ctx, id, cfg.BasicInfo.FormName, raw)
	if err != nil {
		return nil, err
	}
	if len(in.Problems) > 0 {
		metrics.AddConfigProblems(len(in.Problems))
		s.logger.Warn().Str("form_id", id).Strs("problems", in.Problems).Msg("Form saved with dropped sections")
	}

	s.emit(events.TypeFormSaved, events.FormSaved{FormID: id, FormName: cfg.BasicInfo.FormName, Problems: in.Problems})
	return &SaveResult{Form: form, Problems: in.Problems}, nil
}

// Config loads and normalizes the stored configuration of form id.
func (s *Service) Config(ctx context.Context, id string) (*formconfig.FormConfig, error) {
	form, err := s.forms.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	return normalized(form)
}

func normalized(form *store.Form) (*formconfig.FormConfig, error) {
	in, err := formconfig.Parse(form.Config)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", form.ID, err)
	}
	cfg := formconfig.Normalize(in)
	return &cfg, nil
}

// Render assembles the page of cfg with a fresh busy-slot snapshot.
func (s *Service) Render(ctx context.Context, cfg *formconfig.FormConfig) ([]byte, error) {
	started := time.Now()

	var busy []string
	if s.checker != nil && cfg.CalendarSettings.BookingMode == formconfig.ModeCalendar {
		w := availability.Window{Settings: cfg.CalendarSettings, Now: s.now(), Location: s.location}
		var err error
		busy, err = availability.BusySlots(ctx, w, s.checker)
		if err != nil {
			return nil, fmt.Errorf("busy slots: %w", err)
		}
	}

	page, err := document.Assemble(cfg, busy)
	if err != nil {
		return nil, err
	}
	metrics.ObserveRender(time.Since(started), len(page))
	return page, nil
}

// Preview renders form id without deploying it.
func (s *Service) Preview(ctx context.Context, id string) ([]byte, error) {
	cfg, err := s.Config(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, cfg)
}

// Publish renders form id and deploys it unless the page is byte-identical to
// the last deployed one. force deploys regardless.
// Subscribers are notified after the form lock is released.
func (s *Service) Publish(ctx context.Context, id string, force bool) (*Result, error) {
	res, cfg, err := s.publishLocked(ctx, id, force)
	switch {
	case err != nil:
		metrics.IncFormPublished("error")
		return nil, err
	case res.Skipped:
		metrics.IncFormPublished("skipped")
	default:
		metrics.IncFormPublished("deployed")
	}
	s.announce(cfg, res)
	return res, nil
}

func (s *Service) publishLocked(ctx context.Context, id string, force bool) (*Result, *formconfig.FormConfig, error) {
	lock := s.formLock(id)
	lock.Lock()
	defer lock.Unlock()
	return s.publish(ctx, id, force)
}

func (s *Service) publish(ctx context.Context, id string, force bool) (*Result, *formconfig.FormConfig, error) {
	form, err := s.forms.GetForm(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := normalized(form)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.Render(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("render form %s: %w", id, err)
	}

	sum := sha256.Sum256(page)
	hash := hex.EncodeToString(sum[:])
	res := &Result{FormID: id, Hash: hash, Bytes: len(page)}

	prev, err := s.hashes.Get(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("form_id", id).Msg("Failed to read deployed hash")
	}
	if prev == "" {
		prev = form.PublishedHash
	}

	if !force && prev == hash && form.Published() {
		res.Skipped = true
		res.PublicURL = form.PublicURL
		res.ProxyURL = form.ProxyURL
		s.logger.Info().Str("form_id", id).Str("hash", hash).Msg("Page unchanged, deploy skipped")
		return res, cfg, nil
	}

	key, err := deploy.Key(id)
	if err != nil {
		return nil, nil, err
	}
	dep, err := s.deployer.Deploy(ctx, key, page)
	if err != nil {
		return nil, nil, err
	}
	res.PublicURL = dep.PublicURL
	res.ProxyURL = dep.ProxyURL

	if err := s.hashes.Set(ctx, id, hash); err != nil {
		s.logger.Warn().Err(err).Str("form_id", id).Msg("Failed to store deployed hash")
	}
	if err := s.forms.MarkPublished(ctx, id, hash, dep.PublicURL, dep.ProxyURL, s.now()); err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("form_id", id).
		Str("url", dep.PublicURL).
		Int("bytes", len(page)).
		Msg("Form published")
	return res, cfg, nil
}

func (s *Service) announce(cfg *formconfig.FormConfig, res *Result) {
	s.emit(events.TypeFormPublished, events.FormPublished{
		FormID:    res.FormID,
		FormName:  cfg.BasicInfo.FormName,
		StoreName: cfg.BasicInfo.StoreName,
		PublicURL: res.PublicURL,
		ProxyURL:  res.ProxyURL,
		Hash:      res.Hash,
		Skipped:   res.Skipped,
	})
}

// emit publishes an event; subscriber failures are logged and never fail the
// operation that produced the event.
func (s *Service) emit(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	ev, err := events.New(eventType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to build event")
		return
	}
	if err := s.bus.Publish(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}

// ErrInvalidWeek is returned by Slots for a week start that is not YYYY-MM-DD.
var ErrInvalidWeek = errors.New("week must be a YYYY-MM-DD date")

// SlotsPreview is what a form offers to customers. Calendar forms fill Week;
// multiple-dates forms fill Dates and Times.
type SlotsPreview struct {
	BookingMode formconfig.BookingMode    `json:"booking_mode"`
	Week        *availability.Grid        `json:"week,omitempty"`
	Dates       []availability.DateOption `json:"dates,omitempty"`
	Times       []string                  `json:"times,omitempty"`
}

// Slots previews the availability of form id. week selects the first day of
// the calendar grid and defaults to today; busy slots come from the checker.
func (s *Service) Slots(ctx context.Context, id, week string) (*SlotsPreview, error) {
	cfg, err := s.Config(ctx, id)
	if err != nil {
		return nil, err
	}
	cal := cfg.CalendarSettings
	now := s.now().In(s.location)

	if cal.BookingMode == formconfig.ModeMultipleDates {
		return &SlotsPreview{
			BookingMode: cal.BookingMode,
			Dates:       availability.DateOptions(now, cal.MultipleDatesSettings),
			Times:       availability.TimeOptions(cal.MultipleDatesSettings),
		}, nil
	}

	w := availability.Window{Settings: cal, Now: now, Location: s.location}
	start := w.Today()
	if week != "" {
		if start, err = time.ParseInLocation(availability.DateLayout, week, s.location); err != nil {
			return nil, ErrInvalidWeek
		}
	}
	grid, err := w.WeekGrid(ctx, start, s.checker)
	if err != nil {
		return nil, fmt.Errorf("week grid for %s: %w", id, err)
	}
	return &SlotsPreview{BookingMode: cal.BookingMode, Week: &grid}, nil
}

// IsNotFound reports whether err means the form does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
