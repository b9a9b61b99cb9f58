package templating

import (
	"errors"
	"fmt"
	"os"

	"github.com/LeventeLantos/wasender/internal/model"
	"gopkg.in/yaml.v3"
)

var ErrEmptySeed = errors.New("template seed has no templates")

var defaults = []model.Template{
	{
		ID:   "retur",
		Name: "Konfirmasi Retur",
		Text: "{salam} ka, kami dari JNT Cargo manado mau konfrimasi resi : {resi} dengan nama barang : {barang} dengan COD : {cod} sudah ada percobaan delivery tapi msaih belum sukses apakah masih mau diambil atau di retur ka ?",
	},
	{
		ID:   "delivery",
		Name: "Proses Pengantaran",
		Text: "{salam} kak, perkenalkan saya {pengirim} dari JNT Cargo. Menginfokan bahwa paket kakak dengan resi {resi} ({barang}) saat ini sedang dalam proses pengantaran oleh kurir kami ke alamat tujuan. Mohon ditunggu ya kak. Terima kasih!",
	},
	{
		ID:   "received",
		Name: "Konfirmasi Diterima",
		Text: "{salam} kak, perkenalkan saya {pengirim} dari JNT Cargo, kak mau konfirmasi apakah nomor resi ini: {resi} dengan nama penerima: {nama} dengan barang: {barang}, apakah sudah diterima?",
	},
}

// Defaults returns a fresh copy of the built-in template set.
func Defaults() []model.Template {
	out := make([]model.Template, len(defaults))
	copy(out, defaults)
	return out
}

// Select returns the template with id, falling back to the first one.
func Select(ts []model.Template, id string) model.Template {
	for _, t := range ts {
		if t.ID == id {
			return t
		}
	}
	if len(ts) > 0 {
		return ts[0]
	}
	return defaults[0]
}

// WithText returns a copy of ts where the template with id carries text.
func WithText(ts []model.Template, id, text string) []model.Template {
	out := make([]model.Template, len(ts))
	for i, t := range ts {
		if t.ID == id {
			t.Text = text
		}
		out[i] = t
	}
	return out
}

type seedFile struct {
	Templates []model.Template `yaml:"templates"`
}

// LoadSeed reads a YAML template set:
//
//	templates:
//	  - id: retur
//	    name: Konfirmasi Retur
//	    text: "{salam} ka, ..."
func LoadSeed(path string) ([]model.Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template seed: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse template seed %s: %w", path, err)
	}
	if len(f.Templates) == 0 {
		return nil, ErrEmptySeed
	}

	seen := make(map[string]struct{}, len(f.Templates))
	for i, t := range f.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template seed entry %d: missing id", i)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template seed: duplicate id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if f.Templates[i].Name == "" {
			f.Templates[i].Name = t.ID
		}
	}
	return f.Templates, nil
}
