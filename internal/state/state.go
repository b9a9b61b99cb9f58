package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeventeLantos/wasender/internal/kv"
	"github.com/LeventeLantos/wasender/internal/model"
)

const (
	KeyEntries          = "wa_blast_entries"
	KeyTemplates        = "wa_blast_templates"
	KeyActiveTemplateID = "wa_blast_active_template_id"
	KeySettings         = "wa_blast_settings"
)

var ErrCorrupt = errors.New("stored state is malformed")

// Snapshot is everything the app keeps between restarts.
type Snapshot struct {
	Entries          []model.Entry
	Templates        []model.Template
	ActiveTemplateID string
	Settings         model.Settings
}

// Repository persists the four state slices as independent blobs.
type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load reads every slice, keeping the matching field of defaults when a key
// was never written. A blob that fails to decode is returned as ErrCorrupt.
func (r *Repository) Load(ctx context.Context, defaults Snapshot) (Snapshot, error) {
	out := defaults

	if err := r.loadJSON(ctx, KeyEntries, &out.Entries); err != nil {
		return Snapshot{}, err
	}
	if err := r.loadJSON(ctx, KeyTemplates, &out.Templates); err != nil {
		return Snapshot{}, err
	}
	if err := r.loadJSON(ctx, KeySettings, &out.Settings); err != nil {
		return Snapshot{}, err
	}

	id, ok, err := r.store.Get(ctx, KeyActiveTemplateID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", KeyActiveTemplateID, err)
	}
	if ok {
		out.ActiveTemplateID = id
	}

	return out, nil
}

func (r *Repository) SaveEntries(ctx context.Context, entries []model.Entry) error {
	if entries == nil {
		entries = []model.Entry{}
	}
	return r.saveJSON(ctx, KeyEntries, entries)
}

func (r *Repository) SaveTemplates(ctx context.Context, templates []model.Template) error {
	return r.saveJSON(ctx, KeyTemplates, templates)
}

func (r *Repository) SaveSettings(ctx context.Context, s model.Settings) error {
	return r.saveJSON(ctx, KeySettings, s)
}

func (r *Repository) SaveActiveTemplateID(ctx context.Context, id string) error {
	if err := r.store.Set(ctx, KeyActiveTemplateID, id); err != nil {
		return fmt.Errorf("save %s: %w", KeyActiveTemplateID, err)
	}
	return nil
}

func (r *Repository) loadJSON(ctx context.Context, key string, dst any) error {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (r *Repository) saveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
