package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LeventeLantos/wasender/internal/ai"
	"github.com/LeventeLantos/wasender/internal/entries"
	"github.com/LeventeLantos/wasender/internal/export"
	"github.com/LeventeLantos/wasender/internal/metrics"
	"github.com/LeventeLantos/wasender/internal/model"
	"github.com/LeventeLantos/wasender/internal/opener"
	"github.com/LeventeLantos/wasender/internal/sequencer"
	"github.com/LeventeLantos/wasender/internal/state"
	"github.com/LeventeLantos/wasender/internal/templating"
	"github.com/LeventeLantos/wasender/internal/walink"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidSettings = errors.New("invalid settings: delay must be > 0")
	ErrUnknownTag      = errors.New("unknown placeholder tag")
	ErrNoDrafter       = errors.New("AI drafting is not configured")
	ErrDraftFailed     = errors.New("AI draft failed")
	ErrActiveChanged   = errors.New("active template changed during draft")
)

const persistTimeout = 5 * time.Second

type Config struct {
	Repo    *state.Repository
	Opener  opener.Opener
	Drafter ai.Drafter // optional
	Metrics *metrics.Metrics

	// DraftTimeout bounds one drafting call; zero means the caller's ctx only.
	DraftTimeout time.Duration

	// Defaults fills any state slice that was never persisted.
	Defaults state.Snapshot

	Location     *time.Location
	ExportPrefix string

	Now   func() time.Time
	NewID func() string
}

// App owns the working set and is the only place it is mutated. One mutex
// serializes every command, blast steps included.
type App struct {
	mu        sync.Mutex
	entries   *entries.Store
	templates []model.Template
	activeID  string
	settings  model.Settings

	repo    *state.Repository
	seq     *sequencer.Sequencer
	opener  opener.Opener
	drafter ai.Drafter
	metrics *metrics.Metrics

	draftTimeout time.Duration
	loc          *time.Location
	exportPrefix string
	now          func() time.Time
}

// New restores persisted state. A malformed blob is returned as an error
// and the app must not start.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Repo == nil {
		return nil, errors.New("state repository must not be nil")
	}
	if cfg.Opener == nil {
		return nil, errors.New("opener must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Defaults.Templates) == 0 {
		cfg.Defaults.Templates = templating.Defaults()
	}
	if cfg.Defaults.ActiveTemplateID == "" {
		cfg.Defaults.ActiveTemplateID = cfg.Defaults.Templates[0].ID
	}
	if cfg.Defaults.Settings.Delay <= 0 {
		cfg.Defaults.Settings = model.DefaultSettings()
	}

	snap, err := cfg.Repo.Load(ctx, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	if len(snap.Templates) == 0 {
		snap.Templates = cfg.Defaults.Templates
	}
	if snap.Settings.Delay <= 0 {
		slog.Warn("stored delay is not positive, using default", "default", cfg.Defaults.Settings.Delay.String())
		snap.Settings.Delay = cfg.Defaults.Settings.Delay
	}

	opts := []entries.Option{entries.WithClock(cfg.Now)}
	if cfg.NewID != nil {
		opts = append(opts, entries.WithIDGenerator(cfg.NewID))
	}
	store := entries.NewStore(opts...)
	store.Replace(snap.Entries)

	a := &App{
		entries:      store,
		templates:    snap.Templates,
		activeID:     snap.ActiveTemplateID,
		settings:     snap.Settings,
		repo:         cfg.Repo,
		opener:       cfg.Opener,
		drafter:      cfg.Drafter,
		metrics:      cfg.Metrics,
		draftTimeout: cfg.DraftTimeout,
		loc:          cfg.Location,
		exportPrefix: cfg.ExportPrefix,
		now:          cfg.Now,
	}

	seq, err := sequencer.New(sequencer.DispatcherFunc(a.dispatch),
		sequencer.WithOnDone(a.blastFinished),
		sequencer.WithOnRunning(a.blastRunning),
	)
	if err != nil {
		return nil, err
	}
	a.seq = seq

	slog.Info("state restored",
		"entries", store.Len(),
		"templates", len(a.templates),
		"active_template", a.activeID,
		"delay", a.settings.Delay.String(),
	)
	return a, nil
}

// Close stops a running blast.
func (a *App) Close() {
	if a.seq.Stop() {
		a.metrics.BlastRuns.WithLabelValues(metrics.OutcomeStopped).Inc()
	}
}

// ---- entries ----

func (a *App) AddEntry(ctx context.Context, in entries.NewEntry) (model.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, err := a.entries.Add(in)
	if err != nil {
		return model.Entry{}, err
	}
	return e, a.saveEntries(ctx)
}

func (a *App) BulkImport(ctx context.Context, raw string) ([]model.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	added, err := a.entries.BulkImport(raw)
	if err != nil {
		return nil, err
	}
	a.metrics.EntriesImported.Add(float64(len(added)))
	slog.Info("bulk import", "accepted", len(added))
	return added, a.saveEntries(ctx)
}

func (a *App) RemoveEntry(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries.Remove(id)
	return a.saveEntries(ctx)
}

// ClearEntries drops every entry. Callers confirm with the user first.
func (a *App) ClearEntries(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries.Clear()
	return a.saveEntries(ctx)
}

func (a *App) SetStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.entries.SetStatus(id, status) {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return a.saveEntries(ctx)
}

func (a *App) Query(term string) []model.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries.Query(term)
}

func (a *App) Stats() entries.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries.Stats()
}

type Preview struct {
	EntryID string `json:"entryId"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func (a *App) Preview(id string) (Preview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries.Get(id)
	if !ok {
		return Preview{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	msg := a.renderLocked(e)
	return Preview{EntryID: id, Message: msg, Link: walink.Build(e.Phone, msg)}, nil
}

// SendManual opens the link for one entry right away and marks it sent,
// whatever its current status.
func (a *App) SendManual(ctx context.Context, id string) (Preview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries.Get(id)
	if !ok {
		return Preview{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}

	msg := a.renderLocked(e)
	link := walink.Build(e.Phone, msg)
	a.opener.Open(link)
	a.entries.SetStatus(id, model.Sent)
	a.metrics.LinksOpened.WithLabelValues("manual").Inc()

	return Preview{EntryID: id, Message: msg, Link: link}, a.saveEntries(ctx)
}

// ---- templates ----

type TemplateSet struct {
	Templates []model.Template `json:"templates"`
	ActiveID  string           `json:"activeId"`
	Tags      []string         `json:"tags"`
}

func (a *App) Templates() TemplateSet {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.Template, len(a.templates))
	copy(out, a.templates)
	return TemplateSet{
		Templates: out,
		ActiveID:  templating.Select(a.templates, a.activeID).ID,
		Tags:      templating.Tags(),
	}
}

func (a *App) ActiveTemplate() model.Template {
	a.mu.Lock()
	defer a.mu.Unlock()
	return templating.Select(a.templates, a.activeID)
}

func (a *App) SelectTemplate(ctx context.Context, id string) (model.Template, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range a.templates {
		if t.ID == id {
			a.activeID = id
			return t, a.persist(ctx, func(ctx context.Context) error {
				return a.repo.SaveActiveTemplateID(ctx, id)
			})
		}
	}
	return model.Template{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
}

func (a *App) UpdateActiveText(ctx context.Context, text string) (model.Template, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setActiveTextLocked(ctx, text)
}

func (a *App) InsertTag(ctx context.Context, tag string) (model.Template, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if !templating.IsTag(tag) {
		return model.Template{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	active := templating.Select(a.templates, a.activeID)
	return a.setActiveTextLocked(ctx, templating.AppendTag(active.Text, tag))
}

// DraftActiveTemplate asks the AI collaborator for a new body for the
// active template. On any failure the template is left untouched, and a
// draft is discarded with ErrActiveChanged if another template was
// selected while it was being generated.
func (a *App) DraftActiveTemplate(ctx context.Context) (model.Template, error) {
	if a.drafter == nil {
		return model.Template{}, ErrNoDrafter
	}

	active := a.ActiveTemplate()

	if a.draftTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.draftTimeout)
		defer cancel()
	}

	text, err := a.drafter.Draft(ctx, active.Name)
	if err != nil {
		slog.Warn("ai draft failed", "template", active.ID, "error", err)
		return model.Template{}, fmt.Errorf("%w: %w", ErrDraftFailed, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if current := templating.Select(a.templates, a.activeID); current.ID != active.ID {
		return model.Template{}, fmt.Errorf("%w: drafted %s, active is %s", ErrActiveChanged, active.ID, current.ID)
	}
	t, ok := a.templateLocked(active.ID)
	if !ok {
		return model.Template{}, fmt.Errorf("template %s: %w", active.ID, ErrNotFound)
	}
	a.templates = templating.WithText(a.templates, t.ID, text)
	t.Text = text
	return t, a.persist(ctx, func(ctx context.Context) error {
		return a.repo.SaveTemplates(ctx, a.templates)
	})
}

// ---- settings ----

func (a *App) Settings() model.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func (a *App) SetSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	if s.Delay <= 0 {
		return model.Settings{}, ErrInvalidSettings
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings = s
	return s, a.persist(ctx, func(ctx context.Context) error {
		return a.repo.SaveSettings(ctx, s)
	})
}

// AutoCloseTab reports the live setting; the browser opener reads it per link.
func (a *App) AutoCloseTab() bool {
	return a.Settings().AutoCloseTab
}

// ---- blast ----

func (a *App) StartBlast() (sequencer.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := a.entries.Pending()
	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}

	if err := a.seq.Start(ids, a.settings.Delay); err != nil {
		return a.seq.Status(), err
	}
	return a.seq.Status(), nil
}

// StopBlast reports whether a run was active. Whatever was sent stays sent.
func (a *App) StopBlast() (sequencer.Status, bool) {
	stopped := a.seq.Stop()
	if stopped {
		a.metrics.BlastRuns.WithLabelValues(metrics.OutcomeStopped).Inc()
	}
	return a.seq.Status(), stopped
}

func (a *App) BlastStatus() sequencer.Status {
	return a.seq.Status()
}

func (a *App) dispatch(ctx context.Context, id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	e, ok := a.entries.Get(id)
	if !ok || e.Status != model.Pending {
		return false
	}

	link := walink.Build(e.Phone, a.renderLocked(e))
	a.opener.Open(link)
	a.entries.SetStatus(id, model.Sent)
	a.metrics.LinksOpened.WithLabelValues("blast").Inc()

	if err := a.saveEntries(context.WithoutCancel(ctx)); err != nil {
		slog.Error("persist after blast step failed", "entry_id", id, "error", err)
	}
	return true
}

func (a *App) blastFinished(st sequencer.Status) {
	slog.Info("blast completed", "total", st.Total, "dispatched", st.Dispatched)
	a.metrics.BlastRuns.WithLabelValues(metrics.OutcomeCompleted).Inc()
}

// blastRunning is called with the sequencer's lock held.
func (a *App) blastRunning(running bool) {
	if running {
		a.metrics.BlastRunning.Set(1)
		return
	}
	a.metrics.BlastRunning.Set(0)
}

// ---- export ----

func (a *App) ExportCSV(w io.Writer) error {
	a.mu.Lock()
	all := a.entries.All()
	a.mu.Unlock()

	return export.WriteCSV(w, all, a.loc)
}

func (a *App) ExportFilename() string {
	return export.Filename(a.exportPrefix, a.now().In(a.loc))
}

// ---- helpers (callers hold a.mu) ----

func (a *App) renderLocked(e model.Entry) string {
	t := templating.Select(a.templates, a.activeID)
	return templating.Render(t.Text, e, a.settings, a.now().In(a.loc))
}

func (a *App) templateLocked(id string) (model.Template, bool) {
	for _, t := range a.templates {
		if t.ID == id {
			return t, true
		}
	}
	return model.Template{}, false
}

func (a *App) setActiveTextLocked(ctx context.Context, text string) (model.Template, error) {
	active := templating.Select(a.templates, a.activeID)
	a.templates = templating.WithText(a.templates, active.ID, text)
	active.Text = text
	return active, a.persist(ctx, func(ctx context.Context) error {
		return a.repo.SaveTemplates(ctx, a.templates)
	})
}

func (a *App) saveEntries(ctx context.Context) error {
	return a.persist(ctx, func(ctx context.Context) error {
		return a.repo.SaveEntries(ctx, a.entries.All())
	})
}

func (a *App) persist(ctx context.Context, save func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := save(ctx); err != nil {
		slog.Error("persist state failed", "error", err)
		return err
	}
	return nil
}
