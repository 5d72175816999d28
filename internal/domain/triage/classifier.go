package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/caresight/caresight/internal/platform/llm"
)

// Classifier produces an urgency assessment through the external LLM. It is
// one of the two classification paths; the caller falls back to HeuristicAssess
// whenever Classify returns an error.
type Classifier struct {
	client llm.ChatClient
	log    zerolog.Logger
}

// NewClassifier builds the LLM classification path around an injected chat
// client.
func NewClassifier(client llm.ChatClient, logger zerolog.Logger) *Classifier {
	return &Classifier{client: client, log: logger}
}

// rawAssessment mirrors the JSON shape the model is asked to return. Numeric
// fields use RawMessage because models intermittently quote them.
type rawAssessment struct {
	Level                    *string          `json:"level"`
	RiskScore                *json.RawMessage `json:"risk_score"`
	Reasoning                *string          `json:"reasoning"`
	KeyConcerns              []string         `json:"key_concerns"`
	DoctorInterventionNeeded *bool            `json:"doctor_intervention_needed"`
	SuggestedAction          *string          `json:"suggested_action"`
	FollowUpDays             *json.RawMessage `json:"follow_up_days"`
	TaskAssessment           []rawTaskRecord  `json:"task_assessment"`
}

// Classify formats the classification prompt, invokes the LLM with a low
// temperature, and parses the response into a validated assessment. Any
// failure (network, malformed JSON, missing required fields) is returned to
// the caller for fallback handling.
func (c *Classifier) Classify(ctx context.Context, in Input) (*UrgencyAssessment, error) {
	if c.client == nil {
		return nil, fmt.Errorf("no chat client configured")
	}

	prompt, err := formatClassificationPrompt(in)
	if err != nil {
		return nil, fmt.Errorf("build classification prompt: %w", err)
	}

	response, err := c.client.Complete(ctx, prompt, llm.Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		return nil, fmt.Errorf("urgency completion: %w", err)
	}

	return c.parseResponse(response)
}

// parseResponse decodes and validates the model's JSON. The level enum is
// coerced to "attention" when out of range; missing required fields are a
// parse error.
func (c *Classifier) parseResponse(response string) (*UrgencyAssessment, error) {
	var raw rawAssessment
	if err := llm.Decode(response, &raw); err != nil {
		return nil, fmt.Errorf("decode urgency response: %w", err)
	}

	var missing []string
	if raw.Level == nil {
		missing = append(missing, "level")
	}
	if raw.RiskScore == nil {
		missing = append(missing, "risk_score")
	}
	if raw.Reasoning == nil {
		missing = append(missing, "reasoning")
	}
	if raw.KeyConcerns == nil {
		missing = append(missing, "key_concerns")
	}
	if raw.DoctorInterventionNeeded == nil {
		missing = append(missing, "doctor_intervention_needed")
	}
	if raw.SuggestedAction == nil {
		missing = append(missing, "suggested_action")
	}
	if raw.FollowUpDays == nil {
		missing = append(missing, "follow_up_days")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("urgency response missing required fields: %s", strings.Join(missing, ", "))
	}

	level, ok := ParseLevel(*raw.Level)
	if !ok {
		c.log.Warn().Str("level", *raw.Level).Msg("invalid urgency level from model, coercing to attention")
		level = LevelAttention
	}

	score, err := decodeInt(*raw.RiskScore)
	if err != nil {
		return nil, fmt.Errorf("decode risk_score: %w", err)
	}
	followUp, err := decodeInt(*raw.FollowUpDays)
	if err != nil {
		return nil, fmt.Errorf("decode follow_up_days: %w", err)
	}

	tasks := make([]TaskStatusRecord, 0, len(raw.TaskAssessment))
	for _, item := range raw.TaskAssessment {
		name := strings.TrimSpace(firstNonEmpty(item.Task, item.TaskName))
		if name == "" {
			continue
		}
		tasks = append(tasks, TaskStatusRecord{
			Task:             name,
			CompletionStatus: NormalizeStatus(firstNonEmpty(item.CompletionStatus, item.Status)),
			Confidence:       clampConfidence(item.Confidence, 0.6),
			Evidence:         strings.TrimSpace(item.Evidence),
			Notes:            strings.TrimSpace(item.Notes),
		})
	}

	assessment := &UrgencyAssessment{
		Level:                    level,
		RiskScore:                score,
		Reasoning:                *raw.Reasoning,
		KeyConcerns:              raw.KeyConcerns,
		DoctorInterventionNeeded: *raw.DoctorInterventionNeeded,
		SuggestedAction:          *raw.SuggestedAction,
		FollowUpDays:             followUp,
		TaskAssessment:           tasks,
	}
	assessment.RiskScore = clampScore(assessment.RiskScore)
	if assessment.TaskAssessment == nil {
		assessment.TaskAssessment = []TaskStatusRecord{}
	}
	return assessment, nil
}

// decodeInt accepts integers, floats, and quoted numbers.
func decodeInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("neither number nor string: %s", string(raw))
	}
	var v float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &v); err != nil {
		return 0, fmt.Errorf("unparseable number %q", s)
	}
	return int(v), nil
}
