package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderIncludesHeaderRow(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"learner", "result"},
		Rows: []map[string]string{
			{"learner": "a@example.com", "result": "synced"},
			{"learner": "b@example.com", "result": "failed"},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "learner,result", lines[0])
	assert.Equal(t, "a@example.com,synced", lines[1])
}

func TestCSVRenderMissingKeysBecomeEmptyCells(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"learner", "result", "detail"},
		Rows:    []map[string]string{{"learner": "a@example.com"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a@example.com,,", lines[1])
}

func TestCSVRenderRejectsEmptyHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	exporter := NewPDFExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"learner", "result"},
		Rows:    []map[string]string{{"learner": "a@example.com", "result": "synced"}},
	}, "Run Report", []string{"Run: run-1", "Status: completed"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestPDFRenderRejectsEmptyHeaders(t *testing.T) {
	exporter := NewPDFExporter()

	_, err := exporter.Render(Dataset{}, "", nil)
	assert.Error(t, err)
}
