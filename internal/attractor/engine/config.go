package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// RunConfig is the on-disk YAML configuration for a run. AgentCmd,
// StageDir and ExecutionLog have environment variable overrides, applied
// after the file is loaded, so a CI pipeline can override the agent
// command without touching the checked-in config; the other fields come
// only from the file or the defaults.
type RunConfig struct {
	AgentCmd        string   `yaml:"agent_cmd"`
	StageDir        string   `yaml:"stage_dir"`
	ExecutionLog    string   `yaml:"execution_log_path"`
	DefaultMaxRetry int      `yaml:"default_max_retry"`
	ArtifactExclude []string `yaml:"artifact_exclude_globs"`
	ContextRedact   []string `yaml:"context_redact_globs"`
}

const (
	envAgentCmd     = "ATTRACTOR_AGENT_CMD"
	envStageDir     = "ATTRACTOR_STAGE_DIR"
	envExecutionLog = "ATTRACTOR_EXECUTION_LOG"
)

// LoadConfig reads a YAML run configuration from path, applies defaults,
// and then applies environment variable overrides. path may be empty, in
// which case the config is built entirely from defaults and environment
// variables.
func LoadConfig(path string) (*RunConfig, error) {
	cfg := &RunConfig{
		StageDir:        "./stages",
		ExecutionLog:    "./execution_log.json",
		DefaultMaxRetry: 50,
	}
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if v := os.Getenv(envAgentCmd); v != "" {
		cfg.AgentCmd = v
	}
	if v := os.Getenv(envStageDir); v != "" {
		cfg.StageDir = v
	}
	if v := os.Getenv(envExecutionLog); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			cfg.ExecutionLog = filepath.Join(cfg.StageDir, "execution.log.json")
		default:
			cfg.ExecutionLog = v
		}
	}
	return cfg, nil
}

// NodeStageDir returns the stage subdirectory a codergen handler reads and
// writes for a given node within a given run.
func NodeStageDir(stageDirRoot, runID, nodeID string) string {
	return filepath.Join(stageDirRoot, runID, nodeID)
}

// ArtifactPolicy decides which files under a node's stage directory are
// excluded from the stage-directory hash (HashStageDir) and which context
// keys match a redact pattern, using doublestar glob matching so patterns
// like "**/*.key" reach into nested stage output directories.
type ArtifactPolicy struct {
	excludeGlobs []string
	redactGlobs  []string
}

// NewArtifactPolicy builds a policy from a RunConfig's glob lists.
func NewArtifactPolicy(cfg *RunConfig) *ArtifactPolicy {
	if cfg == nil {
		return &ArtifactPolicy{}
	}
	return &ArtifactPolicy{
		excludeGlobs: append([]string(nil), cfg.ArtifactExclude...),
		redactGlobs:  append([]string(nil), cfg.ContextRedact...),
	}
}

// ExcludedFromCheckpoint reports whether relPath (relative to a node's
// stage directory) should be left out of the checkpoint snapshot.
func (p *ArtifactPolicy) ExcludedFromCheckpoint(relPath string) bool {
	return matchesAny(p.excludeGlobs, relPath)
}

// RedactedContextKey reports whether key matches one of the context redact
// globs. The run controller does not consult it: execution log snapshots
// contain every context key.
func (p *ArtifactPolicy) RedactedContextKey(key string) bool {
	return matchesAny(p.redactGlobs, key)
}

func matchesAny(globs []string, s string) bool {
	s = filepath.ToSlash(s)
	for _, g := range globs {
		ok, err := doublestar.Match(g, s)
		if err == nil && ok {
			return true
		}
	}
	return false
}
