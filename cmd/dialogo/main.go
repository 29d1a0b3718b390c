// Command dialogo is a terminal client for trying conversations locally
// against a seeded in-memory store, without a database or an API key.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/studiogamma/centralino/internal/classify"
	"github.com/studiogamma/centralino/internal/config"
	"github.com/studiogamma/centralino/internal/dialog"
	"github.com/studiogamma/centralino/internal/directory"
	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st := seededStore()
	defer st.Close()

	var fallback classify.Fallback
	if cfg.GeminiAPIKey != "" {
		gemini, err := classify.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gemini classifier init failed: %v\n", err)
			os.Exit(1)
		}
		fallback = gemini
	}

	orchestrator := dialog.NewOrchestrator(
		classify.NewEngine(fallback, cfg.ClassifierTimeout),
		st,
		nil,
		dialog.Options{
			OpenHour:               cfg.OfficeOpenHour,
			CloseHour:              cfg.OfficeCloseHour,
			ReplyCharLimit:         cfg.ReplyCharLimit,
			DefaultDurationMinutes: cfg.DefaultDurationMinutes,
			AnswerTaxQueries:       cfg.TaxQueryMode == "answer",
		},
	)
	if cfg.TaxQueryMode == "answer" {
		if gemini, ok := fallback.(*classify.GeminiClassifier); ok {
			orchestrator.SetAnswerEngine(gemini)
		}
	}

	fmt.Println("centralino dialogo: scrivi una frase, 'fine' per uscire")
	fmt.Println("clienti demo: Rossi SRL (+390255501), Brambilla SNC (+390255502)")

	sessionID := fmt.Sprintf("cli-%d", time.Now().Unix())
	conv := domain.Context{}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "fine") || strings.EqualFold(line, "exit") {
			fmt.Println(dialog.ReplyFarewell)
			break
		}

		var res domain.TurnResult
		res, conv = orchestrator.Process(ctx, domain.TurnRequest{
			Utterance:   line,
			SessionID:   sessionID,
			CallerPhone: "+390255501",
		}, conv)

		fmt.Printf("[%s / %s]\n%s\n", res.Intent, res.Action, res.ReplyText)
		if res.Err != "" {
			fmt.Printf("(errore: %s)\n", res.Err)
		}
	}
}

func seededStore() *store.InMemoryStore {
	st := store.NewInMemoryStore()
	st.SeedAccountant(store.Accountant{Name: "Paolo Bianchi", Email: "p.bianchi@studiogamma.it", Specialization: store.SpecializationTax})
	st.SeedAccountant(store.Accountant{Name: "Laura Verdi", Email: "l.verdi@studiogamma.it", Specialization: store.SpecializationPayroll})
	st.SeedAccountant(store.Accountant{Name: "Marco Colombo", Email: "m.colombo@studiogamma.it", Specialization: store.SpecializationCorporate})
	st.SeedClient(store.Client{CompanyName: "Rossi SRL", Phone: "+390255501", TaxCode: "12345678901"})
	st.SeedClient(store.Client{CompanyName: "Brambilla SNC", Phone: "+390255502", TaxCode: "12345678902"})
	st.SeedOfficeValue(directory.KeyHours, "Siamo aperti dal lunedì al venerdì, dalle 9 alle 18.")
	st.SeedOfficeValue(directory.KeyAddress, "Ci trovi in Via Manzoni 12, Milano, vicino alla fermata Montenapoleone.")
	st.SeedOfficeValue(directory.KeyContact, "Puoi scriverci a info@studiogamma.it o chiamare lo 02 1234567.")
	st.SeedOfficeValue(directory.KeyGeneral, "Siamo uno studio commercialista a Milano, specializzato in fiscale, paghe e societario.")
	return st
}
