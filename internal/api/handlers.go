package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/LeventeLantos/wasender/internal/app"
	"github.com/LeventeLantos/wasender/internal/entries"
	"github.com/LeventeLantos/wasender/internal/model"
	"github.com/LeventeLantos/wasender/internal/sequencer"
)

const maxBodyBytes = 4 << 20

var errBadRequest = errors.New("bad request")

type Handler struct {
	app *app.App
}

func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---- entries ----

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	items := h.app.Query(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"stats": h.app.Stats(),
	})
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in entries.NewEntry
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	e, err := h.app.AddEntry(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ImportEntries accepts pasted spreadsheet rows either as a text/plain body
// or as {"text": "..."}.
func (h *Handler) ImportEntries(w http.ResponseWriter, r *http.Request) {
	raw, err := importText(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	added, err := h.app.BulkImport(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"imported": len(added),
		"items":    added,
	})
}

func (h *Handler) ClearEntries(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, fmt.Errorf("%w: clearing all entries requires confirm=true", errBadRequest))
		return
	}
	if err := h.app.ClearEntries(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.app.RemoveEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetEntryStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.SetStatus(r.Context(), r.PathValue("id"), body.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "status": body.Status})
}

func (h *Handler) SendEntry(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.SendManual(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) PreviewEntry(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Preview(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Stats())
}

// ---- templates ----

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Templates())
}

func (h *Handler) SelectTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.app.SelectTemplate(r.Context(), body.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateActiveText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.app.UpdateActiveText(r.Context(), body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) InsertTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag string `json:"tag"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.app.InsertTag(r.Context(), body.Tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DraftTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.DraftActiveTemplate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ---- settings ----

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Settings())
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s model.Settings
	if err := decodeJSON(w, r, &s); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.app.SetSettings(r.Context(), s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// ---- blast ----

func (h *Handler) BlastStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.BlastStatus())
}

func (h *Handler) BlastStart(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.StartBlast()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (h *Handler) BlastStop(w http.ResponseWriter, r *http.Request) {
	st, stopped := h.app.StopBlast()
	writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped, "status": st})
}

// ---- export ----

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": h.app.ExportFilename(),
	}))
	w.WriteHeader(http.StatusOK)

	if err := h.app.ExportCSV(w); err != nil {
		slog.Error("csv export failed", "error", err)
	}
}

// ---- helpers ----

func importText(w http.ResponseWriter, r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			return "", err
		}
		return body.Text, nil
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return string(b), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, entries.ErrValidation),
		errors.Is(err, entries.ErrNoValidRows),
		errors.Is(err, app.ErrInvalidStatus),
		errors.Is(err, app.ErrInvalidSettings),
		errors.Is(err, app.ErrUnknownTag),
		errors.Is(err, sequencer.ErrInvalidDelay):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sequencer.ErrAlreadyRunning),
		errors.Is(err, app.ErrActiveChanged):
		return http.StatusConflict
	case errors.Is(err, sequencer.ErrNothingToSend):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrDraftFailed):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrNoDrafter):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = strings.ToLower(http.StatusText(status))
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
