package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"faultline.dev/pkg/faultline/internal/domain"
	domainmocks "faultline.dev/pkg/faultline/internal/domain/mocks"
	m "faultline.dev/pkg/faultline/internal/model"
)

func TestInstrumentCmd_PassesProbeSelection(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newInstrumentCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	var got domain.InstrumentArgs

	mockWorkflow.EXPECT().Instrument(mock.Anything, mock.Anything).
		Run(func(_ context.Context, args domain.InstrumentArgs) { got = args }).
		Return(nil)

	cmd.SetArgs([]string{"instrument", "--lines", "12,20", "--predicate", "x > 0", "--predicate", "y == nil", "--coverage", "calc.go"})
	err := cmd.Execute()
	require.NoError(t, err)

	assert.Equal(t, m.Path("calc.go"), got.File)
	assert.Equal(t, []int{12, 20}, got.Lines)
	assert.Equal(t, []string{"x > 0", "y == nil"}, got.Predicates)
	assert.True(t, got.Coverage)
}

func TestInstrumentCmd_RequiresOneFile(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newInstrumentCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	cmd.SetArgs([]string{"instrument"})
	require.Error(t, cmd.Execute())
}
