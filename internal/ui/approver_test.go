package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func TestForcedApprover_ApprovesAfterCountdown(t *testing.T) {
	var output bytes.Buffer
	sleeps := 0

	a := &ForcedApprover{output: &output, countdown: 5 * time.Second, sleepFn: func(time.Duration) { sleeps++ }}

	approved, err := a.RequestApproval(context.Background(), `"axxia"."_stg_institutions_csv"`)
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, 5, sleeps)
	assert.Contains(t, output.String(), `"axxia"."_stg_institutions_csv"`)
	assert.Contains(t, output.String(), "Clearing in: 1 seconds")
}

func TestForcedApprover_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0

	a := &ForcedApprover{output: io.Discard, countdown: 5 * time.Second, sleepFn: func(time.Duration) {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
	}}

	approved, err := a.RequestApproval(ctx, "stg")
	assert.False(t, approved)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sleeps)
}

func TestNewForcedApprover_Defaults(t *testing.T) {
	a := NewForcedApprover()
	assert.Equal(t, pgload.DefaultForceApprovalCountdown, a.countdown)
	assert.NotNil(t, a.sleepFn)
}

func TestInteractiveApprover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"matching", "stg\n", true},
		{"surrounding whitespace", "  stg  \n", true},
		{"matching without newline", "stg", true},
		{"different", "other\n", false},
		{"empty line", "\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			a := &InteractiveApprover{input: strings.NewReader(tt.input), output: &output}

			approved, err := a.RequestApproval(context.Background(), "stg")
			require.NoError(t, err)
			assert.Equal(t, tt.want, approved)
			assert.Contains(t, output.String(), "type the table name 'stg'")
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("stdin closed") }

func TestInteractiveApprover_ReadError(t *testing.T) {
	a := &InteractiveApprover{input: errReader{}, output: io.Discard}

	approved, err := a.RequestApproval(context.Background(), "stg")
	assert.False(t, approved)
	assert.ErrorContains(t, err, "failed to read input")
}

func TestInteractiveApprover_EOF(t *testing.T) {
	a := &InteractiveApprover{input: strings.NewReader(""), output: io.Discard}

	approved, err := a.RequestApproval(context.Background(), "stg")
	assert.False(t, approved)
	assert.ErrorIs(t, err, io.EOF)
}

func TestInteractiveApprover_ContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a := &InteractiveApprover{input: pr, output: io.Discard}
	approved, err := a.RequestApproval(ctx, "stg")
	assert.False(t, approved)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNonInteractiveApprover(t *testing.T) {
	approved, err := NonInteractiveApprover{}.RequestApproval(context.Background(), "stg")
	assert.False(t, approved)
	assert.ErrorIs(t, err, pgload.ErrApprovalDenied)
	assert.Equal(t, pgload.ExitApprovalDenied, pgload.ExitCodeForError(err))
	assert.Contains(t, err.Error(), "--force")
}

func TestSelectApprover(t *testing.T) {
	assert.IsType(t, &ForcedApprover{}, SelectApprover(true, false))
	assert.IsType(t, &ForcedApprover{}, SelectApprover(true, true))
	assert.IsType(t, &InteractiveApprover{}, SelectApprover(false, true))
	assert.IsType(t, NonInteractiveApprover{}, SelectApprover(false, false))
}
