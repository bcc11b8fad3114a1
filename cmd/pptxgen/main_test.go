package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
)

func TestRunRejectsEmptyDeck(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.json")
	out := filepath.Join(dir, "output.pptx")
	require.NoError(t, os.WriteFile(in, []byte(`{"slides":[]}`), 0o600))

	err := run(context.Background(), in, out, &bytes.Buffer{}, zap.NewNop())
	require.ErrorIs(t, err, domain.ErrNoSlides)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestRunRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(in, []byte(`{`), 0o600))

	err := run(context.Background(), in, filepath.Join(dir, "o.pptx"), &bytes.Buffer{}, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse input")
}

func TestRunWritesPresentation(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.json")
	out := filepath.Join(dir, "output.pptx")
	require.NoError(t, os.WriteFile(in, []byte(`{"slides":[{"title":"hello","width":960,"height":1280}]}`), 0o600))

	var logs bytes.Buffer
	require.NoError(t, run(context.Background(), in, out, &logs, zap.NewNop()))
	require.Contains(t, logs.String(), "rendering 1 slides at 960x1280 px")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestRootCmdRequiresTwoArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"only-one"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}
