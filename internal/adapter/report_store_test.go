package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "faultline.dev/pkg/faultline/internal/model"
)

func sampleReport() m.Report {
	return m.Report{
		RunID:        "run-1",
		Subject:      "/src/calc",
		Formula:      "ochiai",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TotalFailed:  1,
		TotalPassed:  2,
		FailingTests: []string{"example.com/calc.TestAbs"},
		Ranking: []m.RankedLocation{{
			Rank: 1, File: "calc.go", Line: 12, Method: "calc.Abs", Score: 0.8165, Failed: 1, Passed: 1,
			Predicates: []m.RankedPredicate{{Expression: "x < 0", Score: 1, Failed: 1, OnlyFailing: true}},
		}},
		OnlyFailing: []string{"calc.go:12 [x < 0]"},
	}
}

func TestYAMLReportStore_SaveLoad(t *testing.T) {
	store := NewYAMLReportStore()
	path := m.Path(filepath.Join(t.TempDir(), "nested", "report.yaml"))

	require.NoError(t, store.SaveReport(path, sampleReport()))

	got, err := store.LoadReport(path)
	require.NoError(t, err)

	want := sampleReport()
	want.SchemaVersion = ReportSchemaVersion
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(string(path)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestYAMLReportStore_LoadMissing(t *testing.T) {
	_, err := NewYAMLReportStore().LoadReport(m.Path(filepath.Join(t.TempDir(), "report.yaml")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestYAMLReportStore_LoadRejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 99\nrun_id: x\n"), 0o600))

	_, err := NewYAMLReportStore().LoadReport(m.Path(path))
	require.ErrorIs(t, err, m.ErrMalformedInput)
}

func TestYAMLReportStore_LoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranking: [unterminated\n"), 0o600))

	_, err := NewYAMLReportStore().LoadReport(m.Path(path))
	require.ErrorIs(t, err, m.ErrMalformedInput)
}
