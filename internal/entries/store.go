package entries

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/LeventeLantos/wasender/internal/model"
)

var (
	ErrValidation  = errors.New("phone and recipient name are required")
	ErrNoValidRows = errors.New("no valid rows: each line needs at least phone and name")
)

type NewEntry struct {
	Phone         string `json:"phone"`
	RecipientName string `json:"recipientName"`
	ItemName      string `json:"itemName"`
	ReceiptNumber string `json:"receiptNumber"`
	COD           string `json:"cod"`
}

type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Store is the ordered recipient list, newest first. It is not safe for
// concurrent use; the app controller serializes access.
type Store struct {
	items []model.Entry

	now   func() time.Time
	newID func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Add(in NewEntry) (model.Entry, error) {
	in = trimmed(in)
	if in.Phone == "" || in.RecipientName == "" {
		return model.Entry{}, ErrValidation
	}

	e := s.build(in)
	s.items = append([]model.Entry{e}, s.items...)
	return e, nil
}

// BulkImport parses pasted spreadsheet rows and prepends them in input order.
// Lines with fewer than two columns are skipped without being reported.
func (s *Store) BulkImport(raw string) ([]model.Entry, error) {
	rows := ParseRows(raw)
	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}

	added := make([]model.Entry, len(rows))
	for i, r := range rows {
		added[i] = s.build(r)
	}

	s.items = append(added, s.items...)
	return added, nil
}

func (s *Store) Remove(id string) {
	for i, e := range s.items {
		if e.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *Store) Clear() {
	s.items = nil
}

func (s *Store) SetStatus(id string, status model.Status) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
			return true
		}
	}
	return false
}

func (s *Store) Get(id string) (model.Entry, bool) {
	for _, e := range s.items {
		if e.ID == id {
			return e, true
		}
	}
	return model.Entry{}, false
}

// Query matches term against name, phone and receipt number using Unicode
// case folding. An empty term returns every entry.
func (s *Store) Query(term string) []model.Entry {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.All()
	}

	fold := cases.Fold()
	needle := fold.String(term)

	out := make([]model.Entry, 0, len(s.items))
	for _, e := range s.items {
		if strings.Contains(fold.String(e.RecipientName), needle) ||
			strings.Contains(fold.String(e.Phone), needle) ||
			strings.Contains(fold.String(e.ReceiptNumber), needle) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) All() []model.Entry {
	out := make([]model.Entry, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Pending() []model.Entry {
	var out []model.Entry
	for _, e := range s.items {
		if e.Status == model.Pending {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) Stats() Stats {
	st := Stats{Total: len(s.items)}
	for _, e := range s.items {
		switch e.Status {
		case model.Pending:
			st.Pending++
		case model.Sent:
			st.Sent++
		case model.Failed:
			st.Failed++
		}
	}
	return st
}

// Replace swaps the whole list, used when restoring persisted state.
func (s *Store) Replace(items []model.Entry) {
	s.items = make([]model.Entry, len(items))
	copy(s.items, items)
}

func (s *Store) build(in NewEntry) model.Entry {
	return model.Entry{
		ID:            s.newID(),
		Phone:         in.Phone,
		RecipientName: in.RecipientName,
		ItemName:      in.ItemName,
		ReceiptNumber: in.ReceiptNumber,
		COD:           in.COD,
		Status:        model.Pending,
		CreatedAt:     s.now(),
	}
}

func trimmed(in NewEntry) NewEntry {
	return NewEntry{
		Phone:         strings.TrimSpace(in.Phone),
		RecipientName: strings.TrimSpace(in.RecipientName),
		ItemName:      strings.TrimSpace(in.ItemName),
		ReceiptNumber: strings.TrimSpace(in.ReceiptNumber),
		COD:           strings.TrimSpace(in.COD),
	}
}
