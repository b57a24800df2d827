package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/adapter/coordinator"
	"stagehand/internal/adapter/logger"
	"stagehand/internal/domain"
)

func serialReport(t *testing.T) *coordinator.Report {
	t.Helper()
	c := coordinator.New(coordinator.Options{}, logger.NewNop())
	rep, err := c.RunAll(context.Background(), coordinator.Serial, []domain.Task{
		{Name: "bundle:main", Run: func(context.Context) error { return nil }},
		{Name: "helper:elevate", Run: func(context.Context) error {
			return errors.New("exit status 2\nsecond line")
		}},
		{Name: "helper:stub", Run: func(context.Context) error { return nil }},
	})
	require.Error(t, err)
	return rep
}

func TestSummary_Render(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummary(&buf)

	require.NoError(t, s.Write(&buf, "build", serialReport(t)))
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, "build (serial)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  ok      bundle:main"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  failed  helper:elevate"), lines[2])
	assert.True(t, strings.HasSuffix(lines[2], "  exit status 2"), lines[2])
	assert.NotContains(t, lines[2], "helper:elevate: exit")
	assert.Equal(t, "  skipped helper:stub", lines[3])
	assert.Equal(t, "2 of 3 tasks ran, 1 failed", lines[4])
}

func TestSummary_NoColorForPlainWriter(t *testing.T) {
	var buf bytes.Buffer
	out := NewSummary(&buf).Render("fetch", serialReport(t))
	assert.NotContains(t, out, "\x1b[")
}

func TestSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	rep, err := coordinator.New(coordinator.Options{}, logger.NewNop()).RunAll(context.Background(), coordinator.Parallel, nil)
	require.NoError(t, err)

	out := NewSummary(&buf).Render("build", rep)
	assert.Equal(t, "build (parallel)\n0 of 0 tasks ran, 0 failed\n", out)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "", firstLine(nil))
	assert.Equal(t, "a", firstLine(errors.New("a\nb")))
}
