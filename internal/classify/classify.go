// Package classify defines the natural-language capabilities the worklog
// core depends on: relationship judgment, duplicate judgment, and session
// summarization. The deterministic curation and compression logic is
// written against these interfaces so it can be tested with fakes, while
// production wires an LLM-backed implementation.
package classify

import (
	"context"
	"errors"
)

// ErrUnavailable means the classification capability is unreachable.
// Callers skip the affected extraction and record the gap instead of
// failing the whole operation.
var ErrUnavailable = errors.New("classify: capability unavailable")

// Record is the minimal view of a stored record handed to a classifier.
type Record struct {
	Table   string   `json:"table"`
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// RelatedCandidate is one proposed relationship for a subject record.
type RelatedCandidate struct {
	Target           Record  `json:"target"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence"`
}

// Classifier judges relationships between stored records.
type Classifier interface {
	// RelateCandidates proposes typed, confidence-scored relationships
	// from the subject to any of the candidates. Candidates the subject
	// is unrelated to are simply omitted.
	RelateCandidates(ctx context.Context, subject Record, candidates []Record) ([]RelatedCandidate, error)
}

// SessionActivity is the raw material of one agent session handed to the
// summarizer. It is a digest, never a transcript.
type SessionActivity struct {
	SessionID      string   `json:"session_id"`
	Project        string   `json:"project,omitempty"`
	CompletedTasks []string `json:"completed_tasks,omitempty"`
	FilesTouched   []string `json:"files_touched,omitempty"`
	MessageCount   int      `json:"message_count"`
	ErrorsResolved []string `json:"errors_resolved,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// WorkSummary is the compressed description of a session's work.
type WorkSummary struct {
	Title    string   `json:"title"`
	TaskType string   `json:"task_type"`
	Details  string   `json:"details"`
	Outcome  string   `json:"outcome"`
	Tags     []string `json:"tags,omitempty"`
}

// Learning is one typed knowledge item extracted from a session.
type Learning struct {
	// Kind is decision, pattern, error_pattern, or gotcha.
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`

	// ErrorPattern fields, set when Kind is error_pattern.
	ErrorSignature string `json:"error_signature,omitempty"`
	RootCause      string `json:"root_cause,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	Prevention     string `json:"prevention,omitempty"`
}

// Learning kinds.
const (
	KindDecision     = "decision"
	KindPattern      = "pattern"
	KindErrorPattern = "error_pattern"
	KindGotcha       = "gotcha"
)

// Summarizer compresses session activity into structured records.
type Summarizer interface {
	// SummarizeWork produces the single WorkEntry-shaped summary of a
	// session (~100 tokens of output, regardless of session length).
	SummarizeWork(ctx context.Context, activity SessionActivity) (*WorkSummary, error)

	// ExtractLearnings produces the typed learnings of a session, each
	// destined for its own row.
	ExtractLearnings(ctx context.Context, activity SessionActivity) ([]Learning, error)
}
