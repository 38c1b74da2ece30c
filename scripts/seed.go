// Seed script for loading demo history into a running Sentinel server.
// Run with: go run ./scripts/seed.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type resolution struct {
	TicketID              string    `json:"ticket_id"`
	Department            string    `json:"department"`
	Category              string    `json:"category"`
	Priority              string    `json:"priority"`
	AgentID               string    `json:"agent_id"`
	ResolutionTimeMinutes float64   `json:"resolution_time_minutes"`
	CSAT                  float64   `json:"csat"`
	Escalated             bool      `json:"escalated"`
	Reopened              bool      `json:"reopened"`
	SolutionSummary       string    `json:"solution_summary"`
	CustomerMessage       string    `json:"customer_message,omitempty"`
	ResolvedAt            time.Time `json:"resolved_at"`
}

type scenario struct {
	department string
	category   string
	solutions  []string
	messages   []string
	baseMins   float64
}

var scenarios = []scenario{
	{
		department: "billing",
		category:   "refund",
		solutions:  []string{"Issued refund to original payment method", "Reversed duplicate charge", "Applied account credit"},
		messages:   []string{"I was charged twice and I want my money back", "Thanks, the refund arrived quickly", "This is the third time I am asking for a refund, unacceptable"},
		baseMins:   45,
	},
	{
		department: "support",
		category:   "login",
		solutions:  []string{"Reset MFA device", "Cleared locked account flag", "Walked through password reset"},
		messages:   []string{"I cannot log in and I am confused about the reset steps", "Still locked out, this is urgent", "Great, that worked"},
		baseMins:   30,
	},
	{
		department: "support",
		category:   "outage",
		solutions:  []string{"Escalated to on-call and shared status page", "Restarted stuck sync job"},
		messages:   []string{"Your service has been down for hours, I will cancel", "The dashboard shows an error since this morning"},
		baseMins:   180,
	},
}

var agents = []string{"alice", "bob", "carol", "dave"}

func main() {
	envFile := os.Getenv("SENTINEL_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	baseURL := os.Getenv("SENTINEL_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	apiKey := os.Getenv("SENTINEL_API_KEY")

	rng := rand.New(rand.NewSource(42))
	client := &http.Client{Timeout: 10 * time.Second}
	now := time.Now().UTC()

	posted := 0
	for i := 0; i < 60; i++ {
		sc := scenarios[i%len(scenarios)]
		escalated := rng.Float64() < 0.15
		csat := 3 + 2*rng.Float64()
		if escalated {
			csat = 1 + 2*rng.Float64()
		}
		res := resolution{
			TicketID:              fmt.Sprintf("T-%04d", i+1),
			Department:            sc.department,
			Category:              sc.category,
			Priority:              []string{"low", "normal", "high", "urgent"}[rng.Intn(4)],
			AgentID:               agents[rng.Intn(len(agents))],
			ResolutionTimeMinutes: sc.baseMins * (0.5 + rng.Float64()),
			CSAT:                  float64(int(csat*10)) / 10,
			Escalated:             escalated,
			Reopened:              rng.Float64() < 0.05,
			SolutionSummary:       sc.solutions[rng.Intn(len(sc.solutions))],
			CustomerMessage:       sc.messages[rng.Intn(len(sc.messages))],
			ResolvedAt:            now.Add(-time.Duration(60-i) * 3 * time.Hour),
		}
		if err := post(client, baseURL+"/v1/learning/resolutions", apiKey, res); err != nil {
			log.Fatalf("Failed to seed %s: %v", res.TicketID, err)
		}
		posted++

		if escalated {
			pattern := map[string]any{
				"department": sc.department,
				"category":   sc.category,
				"trigger":    []string{"manager", "cancel", "lawyer", "unacceptable"}[rng.Intn(4)],
				"timestamp":  res.ResolvedAt,
			}
			if err := post(client, baseURL+"/v1/learning/escalations", apiKey, pattern); err != nil {
				log.Fatalf("Failed to seed escalation for %s: %v", res.TicketID, err)
			}
		}
	}

	fmt.Printf("Seeded %d resolutions into %s\n", posted, baseURL)
	fmt.Printf("Try: curl %s/v1/departments/support/insights\n", baseURL)
}

func post(client *http.Client, url, apiKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
