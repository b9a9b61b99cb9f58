package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

var ErrEmptyDraft = errors.New("model returned no text")

type Drafter interface {
	Draft(ctx context.Context, templateName string) (string, error)
}

type GenAIConfig struct {
	APIKey string
	Model  string

	// BaseURL and HTTPClient are overridable for tests and proxies.
	BaseURL    string
	HTTPClient *http.Client
}

// GenAI drafts template bodies with the Gemini API.
type GenAI struct {
	client *genai.Client
	model  string
}

func NewGenAI(ctx context.Context, cfg GenAIConfig) (*GenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAI{client: client, model: cfg.Model}, nil
}

func (g *GenAI) Draft(ctx context.Context, templateName string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(templateName)), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyDraft
	}
	return text, nil
}

// Prompt is the fixed instruction sent for a template named name.
func Prompt(name string) string {
	return fmt.Sprintf(`Buatkan satu template pesan WhatsApp yang sopan dan singkat untuk keperluan "%s" dari kurir JNT Cargo kepada pelanggan.
Gunakan placeholder berikut apa adanya jika relevan: {salam} untuk salam pembuka, {pengirim} untuk nama admin, {nama} untuk nama penerima, {barang} untuk nama barang, {resi} untuk nomor resi, {cod} untuk nominal COD.
Balas hanya dengan isi template tanpa penjelasan, tanpa tanda kutip, dan tanpa format markdown.`, name)
}
