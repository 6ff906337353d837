package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExecutionStepEntry records one node execution within an ExecutionLog.
type ExecutionStepEntry struct {
	Step                int               `json:"step"`
	NodeID              string            `json:"node_id"`
	HandlerType         string            `json:"handler_type,omitempty"`
	ContextBefore       map[string]string `json:"context_before"`
	Outcome             NodeOutcome       `json:"outcome"`
	ContextAfter        map[string]string `json:"context_after"`
	NextNodeID          string            `json:"next_node_id,omitempty"`
	CompletedNodesAfter []string          `json:"completed_nodes_after"`
}

// FinalStatus is the terminal state of a run as recorded in the log.
type FinalStatus string

const (
	FinalSuccess    FinalStatus = "success"
	FinalError      FinalStatus = "error"
	FinalInProgress FinalStatus = "in_progress"
)

// ExecutionLog is the on-disk record of a run, rewritten after every step
// and finalized once on termination.
type ExecutionLog struct {
	Version        int                  `json:"version"`
	Goal           string               `json:"goal"`
	StartedAt      string               `json:"started_at"`
	FinishedAt     *string              `json:"finished_at"`
	FinalStatus    FinalStatus          `json:"final_status"`
	CompletedNodes []string             `json:"completed_nodes"`
	Steps          []ExecutionStepEntry `json:"steps"`
}

// NewExecutionLog returns a fresh in-progress log for goal, started now.
func NewExecutionLog(goal, startedAtISO8601 string) *ExecutionLog {
	return &ExecutionLog{
		Version:        1,
		Goal:           goal,
		StartedAt:      startedAtISO8601,
		FinalStatus:    FinalInProgress,
		CompletedNodes: []string{},
		Steps:          []ExecutionStepEntry{},
	}
}

// LoadExecutionLog reads and parses a log from path.
func LoadExecutionLog(path string) (*ExecutionLog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var log ExecutionLog
	if err := json.Unmarshal(b, &log); err != nil {
		return nil, fmt.Errorf("runtime: decode execution log %s: %w", path, err)
	}
	return &log, nil
}

// SavePartial rewrites the log to path with finished_at cleared and
// final_status forced to in_progress, regardless of what the in-memory
// log currently holds — the file on disk must always describe an
// in-progress run until Finalize is called.
func (l *ExecutionLog) SavePartial(path string) error {
	finishedAt := l.FinishedAt
	finalStatus := l.FinalStatus
	l.FinishedAt = nil
	l.FinalStatus = FinalInProgress
	err := l.save(path)
	l.FinishedAt = finishedAt
	l.FinalStatus = finalStatus
	return err
}

// Finalize sets finished_at and final_status and writes the terminal log
// to path.
func (l *ExecutionLog) Finalize(path, finishedAtISO8601 string, status FinalStatus) error {
	l.FinishedAt = &finishedAtISO8601
	l.FinalStatus = status
	return l.save(path)
}

func (l *ExecutionLog) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
