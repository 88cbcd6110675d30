package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements Classifier and Summarizer against the OpenAI chat API.
// All responses are requested as JSON and parsed strictly; a transport
// failure is reported as ErrUnavailable so callers degrade instead of
// aborting.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed classifier/summarizer.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}
}

// RelateCandidates asks the model which candidates relate to the subject.
func (o *OpenAI) RelateCandidates(ctx context.Context, subject Record, candidates []Record) ([]RelatedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	payload := struct {
		Subject    Record   `json:"subject"`
		Candidates []Record `json:"candidates"`
		Types      []string `json:"allowed_types"`
	}{
		Subject:    subject,
		Candidates: candidates,
		Types: []string{
			"relates_to", "supersedes", "implements", "documents",
			"duplicate_of", "depends_on", "parent_of", "child_of",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("classify: marshal request: %w", err)
	}

	content, err := o.complete(ctx,
		"You judge relationships between knowledge records. "+
			"Given a subject and candidate records, return JSON "+
			`{"relationships":[{"candidate_index":0,"relationship_type":"...","confidence":0.0}]} `+
			"listing only candidates genuinely related to the subject, with confidence in [0,1]. "+
			"Use only the allowed relationship types.",
		string(body),
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Relationships []struct {
			CandidateIndex   int     `json:"candidate_index"`
			RelationshipType string  `json:"relationship_type"`
			Confidence       float64 `json:"confidence"`
		} `json:"relationships"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("classify: parse response: %w", err)
	}

	var out []RelatedCandidate
	for _, r := range parsed.Relationships {
		if r.CandidateIndex < 0 || r.CandidateIndex >= len(candidates) {
			continue
		}
		out = append(out, RelatedCandidate{
			Target:           candidates[r.CandidateIndex],
			RelationshipType: r.RelationshipType,
			Confidence:       r.Confidence,
		})
	}
	return out, nil
}

// SummarizeWork compresses session activity into one work summary.
func (o *OpenAI) SummarizeWork(ctx context.Context, activity SessionActivity) (*WorkSummary, error) {
	body, err := json.Marshal(activity)
	if err != nil {
		return nil, fmt.Errorf("classify: marshal activity: %w", err)
	}

	content, err := o.complete(ctx,
		"You compress an AI coding session into a single short work log record. "+
			"Return JSON {\"title\":\"...\",\"task_type\":\"...\",\"details\":\"...\",\"outcome\":\"...\",\"tags\":[...]}. "+
			"task_type is one of: configuration, deployment, debugging, development, documentation, research, maintenance, handoff. "+
			"Keep details under 100 words. Never echo the raw activity back.",
		string(body),
	)
	if err != nil {
		return nil, err
	}

	var summary WorkSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("classify: parse summary: %w", err)
	}
	if summary.Title == "" {
		return nil, fmt.Errorf("classify: summarizer returned no title")
	}
	return &summary, nil
}

// ExtractLearnings pulls typed learnings out of session activity.
func (o *OpenAI) ExtractLearnings(ctx context.Context, activity SessionActivity) ([]Learning, error) {
	body, err := json.Marshal(activity)
	if err != nil {
		return nil, fmt.Errorf("classify: marshal activity: %w", err)
	}

	content, err := o.complete(ctx,
		"You extract reusable learnings from an AI coding session digest. "+
			`Return JSON {"learnings":[{"kind":"decision|pattern|error_pattern|gotcha","title":"...","content":"...","tags":[...],`+
			`"error_signature":"...","root_cause":"...","resolution":"...","prevention":"..."}]}. `+
			"One item per learning; the error_* fields only for kind error_pattern. "+
			"Return an empty list when the session taught nothing reusable.",
		string(body),
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Learnings []Learning `json:"learnings"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("classify: parse learnings: %w", err)
	}
	return parsed.Learnings, nil
}

// complete sends one chat completion and returns the message content.
func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
