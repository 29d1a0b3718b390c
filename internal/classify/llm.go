package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/reliability"
)

const classificationPrompt = `Analizza questa richiesta di un cliente di uno studio commercialista italiano e classifica l'intento.

INTENTI POSSIBILI:
- tax_query: domande su fiscalita', tasse, IVA, IRES, scadenze fiscali
- booking: prenotare, modificare, cancellare un appuntamento
- routing: parlare con un commercialista specifico
- office_info: orari ufficio, indirizzo, contatti
- lead: nuovo potenziale cliente che chiede informazioni
- unknown: non classificabile

RICHIESTA:
%q`

var classificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type: genai.TypeString,
			Enum: []string{"tax_query", "booking", "routing", "office_info", "lead", "unknown"},
		},
		"confidence": {Type: genai.TypeNumber},
		"entities": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":            {Type: genai.TypeString, Description: "YYYY-MM-DD se menzionata"},
				"time":            {Type: genai.TypeString, Description: "HH:MM se menzionato"},
				"accountant_name": {Type: genai.TypeString},
				"tax_type":        {Type: genai.TypeString, Description: "IVA|IRES|IRAP se menzionato"},
			},
		},
	},
	Required: []string{"intent", "confidence"},
}

// GeminiClassifier is the structured-output fallback tier.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, utterance string) (Result, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   classificationSchema,
		Temperature:      genai.Ptr[float32](0),
	}
	prompt := fmt.Sprintf(classificationPrompt, utterance)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, time.Second)):
			}
		}
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err != nil {
			lastErr = err
			if retryableAPIError(err) {
				continue
			}
			return Result{}, fmt.Errorf("classification call: %w", err)
		}
		return ParseClassification(resp.Text())
	}
	return Result{}, fmt.Errorf("classification call: %w", lastErr)
}

const answerPrompt = `Sei l'assistente telefonico di uno studio commercialista italiano.
Rispondi in italiano, in massimo due frasi, a questa domanda fiscale generale.
Non dare consulenza personalizzata: limita la risposta a informazioni pubbliche
(scadenze, aliquote ordinarie, definizioni).

DOMANDA:
%q`

// Answer produces a short free-text reply for general tax questions. It shares
// the classifier client so the answer tier costs no extra setup.
func (g *GeminiClassifier) Answer(ctx context.Context, question string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(fmt.Sprintf(answerPrompt, question)), cfg)
	if err != nil {
		return "", fmt.Errorf("answer call: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func retryableAPIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.Code)
	}
	return false
}

type classificationPayload struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Entities   struct {
		Date           string `json:"date"`
		Time           string `json:"time"`
		AccountantName string `json:"accountant_name"`
		TaxType        string `json:"tax_type"`
	} `json:"entities"`
}

// ParseClassification decodes the model's JSON payload. Malformed output is
// an error so callers can degrade to Unknown rather than guess.
func ParseClassification(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	var payload classificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("malformed classification payload: %w", err)
	}

	res := Result{Confidence: payload.Confidence}
	switch payload.Intent {
	case "tax_query":
		res.Intent = domain.IntentUnknown
		res.TaxFlag = true
	case "booking":
		res.Intent = domain.IntentBooking
	case "routing":
		res.Intent = domain.IntentRouting
	case "office_info":
		res.Intent = domain.IntentOfficeInfo
	case "lead":
		res.Intent = domain.IntentLead
	default:
		res.Intent = domain.IntentUnknown
	}

	slots := make(map[string]string, 4)
	if v := strings.TrimSpace(payload.Entities.Date); v != "" {
		slots[domain.SlotDate] = v
	}
	if v := strings.TrimSpace(payload.Entities.Time); v != "" {
		slots[domain.SlotTime] = v
	}
	if v := strings.TrimSpace(payload.Entities.AccountantName); v != "" {
		slots[domain.SlotAccountantName] = v
	}
	if v := strings.TrimSpace(payload.Entities.TaxType); v != "" {
		slots[domain.SlotTaxType] = strings.ToUpper(v)
	}
	if len(slots) > 0 {
		res.Slots = slots
	}
	return res, nil
}
