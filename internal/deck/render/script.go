package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
)

var ErrEmptyOutput = errors.New("generator produced an empty file")

// ScriptConfig describes the external generator command. The input and
// output paths are appended after Args.
type ScriptConfig struct {
	Command string
	Args    []string
	Timeout time.Duration
	TempDir string
}

// Script renders decks by shelling out to an external program and
// exchanging data through temporary files.
type Script struct {
	cfg    ScriptConfig
	logger *zap.Logger
}

// NewScript builds a subprocess generator.
func NewScript(cfg ScriptConfig, logger *zap.Logger) (*Script, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("script command is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Script{cfg: cfg, logger: logger}, nil
}

func (s *Script) Name() string { return "script" }

// Generate writes the deck to input.json, runs the command and returns the
// bytes it wrote to output.pptx.
func (s *Script) Generate(ctx context.Context, deck domain.Deck) ([]byte, error) {
	if err := deck.Validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.cfg.TempDir, "deck-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("temp cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	input := filepath.Join(dir, "input.json")
	output := filepath.Join(dir, "output.pptx")
	payload, err := json.Marshal(deck)
	if err != nil {
		return nil, fmt.Errorf("marshal deck: %w", err)
	}
	if err := os.WriteFile(input, payload, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	args := append(append([]string(nil), s.cfg.Args...), input, output)
	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	s.logger.Debug("generator script finished",
		zap.String("command", s.cfg.Command),
		zap.String("dir", dir),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stdout", strings.TrimSpace(stdout.String())))
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("generator script timed out after %s", s.cfg.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("generator script: %w: %s", runErr, msg)
		}
		return nil, fmt.Errorf("generator script: %w", runErr)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	return data, nil
}
