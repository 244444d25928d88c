package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/sony/gobreaker/v2"
)

// Candidate count bounds enforced on generator responses.
const (
	minGeneratorSlots = 2
	maxGeneratorSlots = 5
)

var (
	// ErrGeneratorUnavailable covers transport failures, timeouts, and an
	// open circuit. The caller falls back; the user never sees this.
	ErrGeneratorUnavailable = errors.New("alternative generator unavailable")
	// ErrMalformedResponse means the response violated the schema. Treated
	// as a total failure; partial output is never consumed.
	ErrMalformedResponse = errors.New("malformed generator response")
)

// LLMGeneratorConfig configures the external generator client.
type LLMGeneratorConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each generation call; on expiry the request is
	// cancelled and the caller falls back.
	Timeout time.Duration
	// Breaker settings.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultLLMGeneratorConfig returns production defaults.
func DefaultLLMGeneratorConfig(baseURL, apiKey string) LLMGeneratorConfig {
	return LLMGeneratorConfig{
		BaseURL:          baseURL,
		APIKey:           apiKey,
		Timeout:          8 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
	}
}

// LLMGenerator asks the external language-model service for alternative
// slots. Its output is advisory only; the pipeline re-validates every
// candidate against the real schedule and working hours.
type LLMGenerator struct {
	client  *http.Client
	config  LLMGeneratorConfig
	breaker *gobreaker.CircuitBreaker[[]domain.AlternativeSlot]
	logger  *slog.Logger
}

// NewLLMGenerator creates the generator client.
func NewLLMGenerator(config LLMGeneratorConfig, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:    "alternative-generator",
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &LLMGenerator{
		client:  &http.Client{},
		config:  config,
		breaker: gobreaker.NewCircuitBreaker[[]domain.AlternativeSlot](settings),
		logger:  logger,
	}
}

// generatorRequest is the structured context sent to the service.
type generatorRequest struct {
	Prompt          string                 `json:"prompt"`
	ProposedStart   time.Time              `json:"proposed_start"`
	ProposedEnd     time.Time              `json:"proposed_end"`
	DurationMinutes int                    `json:"duration_minutes"`
	Timezone        string                 `json:"timezone"`
	Schedule        []domain.ScheduleBlock `json:"schedule"`
	WorkingHours    domain.WeeklyHours     `json:"working_hours"`
	MinAlternatives int                    `json:"min_alternatives"`
	MaxAlternatives int                    `json:"max_alternatives"`
}

// generatorResponse is the fixed response schema.
type generatorResponse struct {
	Alternatives []generatorSlot `json:"alternatives"`
}

type generatorSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
	Score     int    `json:"score"`
	DayType   string `json:"day_type"`
	TimeOfDay string `json:"time_of_day"`
}

// Generate calls the external service under the configured timeout and
// parses its response strictly. Any deviation from the schema fails the
// whole call.
func (g *LLMGenerator) Generate(ctx context.Context, cctx domain.ConflictContext) ([]domain.AlternativeSlot, error) {
	slots, err := g.breaker.Execute(func() ([]domain.AlternativeSlot, error) {
		return g.generate(ctx, cctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrGeneratorUnavailable)
		}
		return nil, err
	}
	return slots, nil
}

func (g *LLMGenerator) generate(ctx context.Context, cctx domain.ConflictContext) ([]domain.AlternativeSlot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	reqBody := generatorRequest{
		Prompt:          buildPrompt(cctx),
		ProposedStart:   cctx.Proposed.Start,
		ProposedEnd:     cctx.Proposed.End,
		DurationMinutes: int(cctx.Duration.Minutes()),
		Timezone:        cctx.Timezone.String(),
		Schedule:        cctx.Blocks,
		WorkingHours:    cctx.WorkingHours,
		MinAlternatives: minGeneratorSlots,
		MaxAlternatives: maxGeneratorSlots,
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode generator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(g.config.BaseURL, "/")+"/v1/alternatives", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("generator call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("generator returned non-OK status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrGeneratorUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	return parseGeneratorResponse(body)
}

// parseGeneratorResponse validates the response against the fixed schema.
// A violation anywhere discards the entire response.
func parseGeneratorResponse(body []byte) ([]domain.AlternativeSlot, error) {
	var parsed generatorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(parsed.Alternatives) < minGeneratorSlots || len(parsed.Alternatives) > maxGeneratorSlots {
		return nil, fmt.Errorf("%w: expected %d-%d alternatives, got %d",
			ErrMalformedResponse, minGeneratorSlots, maxGeneratorSlots, len(parsed.Alternatives))
	}

	slots := make([]domain.AlternativeSlot, 0, len(parsed.Alternatives))
	for i, raw := range parsed.Alternatives {
		start, err := time.Parse(time.RFC3339, raw.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: alternative %d start_time: %v", ErrMalformedResponse, i, err)
		}
		end, err := time.Parse(time.RFC3339, raw.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: alternative %d end_time: %v", ErrMalformedResponse, i, err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("%w: alternative %d has end before start", ErrMalformedResponse, i)
		}
		if raw.Score < 0 || raw.Score > 100 {
			return nil, fmt.Errorf("%w: alternative %d score %d out of range", ErrMalformedResponse, i, raw.Score)
		}
		if raw.Reason == "" {
			return nil, fmt.Errorf("%w: alternative %d missing reason", ErrMalformedResponse, i)
		}
		slots = append(slots, domain.AlternativeSlot{
			Start:  start.UTC(),
			End:    end.UTC(),
			Reason: raw.Reason,
			Score:  raw.Score,
			// DayType/TimeOfDay from the response are ignored; the
			// pipeline recomputes them from the slot's own date.
		})
	}
	return slots, nil
}

// buildPrompt renders the conflict, the week's schedule, and the working
// hours as natural language for the generator.
func buildPrompt(cctx domain.ConflictContext) string {
	loc := cctx.Timezone
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A tutoring session %q is proposed for %s to %s (%s), but it conflicts with:\n",
		cctx.ProposedTitle,
		cctx.Proposed.Start.In(loc).Format("Mon Jan 2 15:04"),
		cctx.Proposed.End.In(loc).Format("15:04"),
		loc.String(),
	)
	for _, c := range cctx.Conflicts {
		fmt.Fprintf(&b, "- %q from %s to %s\n",
			c.Title,
			c.Range.Start.In(loc).Format("Mon Jan 2 15:04"),
			c.Range.End.In(loc).Format("15:04"),
		)
	}

	b.WriteString("\nExisting schedule for the next 7 days:\n")
	if len(cctx.Blocks) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, block := range cctx.Blocks {
		fmt.Fprintf(&b, "- %q from %s to %s\n",
			block.Title,
			block.Start.In(loc).Format("Mon Jan 2 15:04"),
			block.End.In(loc).Format("15:04"),
		)
	}

	b.WriteString("\nWorking hours:\n")
	for day := time.Sunday; day <= time.Saturday; day++ {
		ranges := cctx.WorkingHours[day]
		if len(ranges) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s:", day)
		for _, r := range ranges {
			fmt.Fprintf(&b, " %02d:%02d-%02d:%02d",
				r.StartMinute/60, r.StartMinute%60, r.EndMinute/60, r.EndMinute%60)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nSuggest %d to %d alternative slots of %d minutes that avoid all conflicts and stay within working hours.",
		minGeneratorSlots, maxGeneratorSlots, int(cctx.Duration.Minutes()))
	return b.String()
}
