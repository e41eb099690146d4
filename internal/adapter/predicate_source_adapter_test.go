package adapter_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"faultline.dev/pkg/faultline/internal/adapter"
	adaptermocks "faultline.dev/pkg/faultline/internal/adapter/mocks"
	m "faultline.dev/pkg/faultline/internal/model"
)

const predictionsTSV = "location\tvariable\tcondition\tprobability\n" +
	"calc.go:12\tx\t$ < 0\t0.9\n" +
	"calc.go:12\ty\t$ == 0\t0.95\n" +
	"calc.go:12\tx\tbroken\n" +
	"calc.go:12\tx\t$ > 1\tnot-a-number\n" +
	"\n" +
	"calc.go:20\tn\t$ > len(xs)\t0.2\n"

func TestParsePredictions(t *testing.T) {
	got, err := adapter.ParsePredictions(bufio.NewScanner(strings.NewReader(predictionsTSV)))
	require.NoError(t, err)

	require.Len(t, got["calc.go:12"], 2)
	assert.Equal(t, "x < 0", got["calc.go:12"][0].Expression)
	assert.Equal(t, "x", got["calc.go:12"][0].Variable)
	assert.Equal(t, "n > len(xs)", got["calc.go:20"][0].Expression)
}

func TestTSVPredicateSource_Propose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.tsv")
	require.NoError(t, os.WriteFile(path, []byte(predictionsTSV), 0o600))

	source := adapter.NewTSVPredicateSource(m.Path(path))
	assert.Equal(t, "file", source.Name())

	preds, err := source.Propose(context.Background(), adapter.PredicateRequest{File: "calc.go", Line: 12})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "y == 0", preds[0].Expression, "highest probability first")
	assert.Equal(t, "x < 0", preds[1].Expression)

	none, err := source.Propose(context.Background(), adapter.PredicateRequest{File: "calc.go", Line: 13})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTSVPredicateSource_MissingFile(t *testing.T) {
	source := adapter.NewTSVPredicateSource(m.Path(filepath.Join(t.TempDir(), "missing.tsv")))

	_, err := source.Propose(context.Background(), adapter.PredicateRequest{File: "calc.go", Line: 1})
	require.Error(t, err)

	_, again := source.Propose(context.Background(), adapter.PredicateRequest{File: "calc.go", Line: 1})
	assert.Equal(t, err, again, "load is attempted once")
}

func TestHeuristicPredicateSource_Propose(t *testing.T) {
	source := adapter.NewHeuristicPredicateSource()

	preds, err := source.Propose(context.Background(), adapter.PredicateRequest{
		Variables: []m.Variable{
			{Name: "n", Type: "int"},
			{Name: "ok", Type: "bool"},
			{Name: "err", Type: "error"},
			{Name: "s", Type: "string"},
		},
	})
	require.NoError(t, err)

	var exprs []string
	for _, p := range preds {
		exprs = append(exprs, p.Expression)
	}

	assert.ElementsMatch(t, []string{"n > 0", "n < 0", "n == 0", "ok", "err == nil"}, exprs)
	assert.Equal(t, 0.5, preds[0].Probability)

	for i := 1; i < len(preds); i++ {
		assert.GreaterOrEqual(t, preds[i-1].Probability, preds[i].Probability)
	}
}

func TestParseProposals(t *testing.T) {
	vars := []m.Variable{{Name: "x", Type: "int"}}

	t.Run("tolerates code fences", func(t *testing.T) {
		content := "Sure:\n```json\n[{\"variable\":\"x\",\"condition\":\"$ < 0\",\"probability\":0.7}," +
			"{\"variable\":\"zz\",\"condition\":\"$ > 0\",\"probability\":0.9}," +
			"{\"variable\":\"x\",\"condition\":\" \",\"probability\":0.9}]\n```"

		preds, err := adapter.ParseProposals(content, vars)
		require.NoError(t, err)
		require.Len(t, preds, 1)
		assert.Equal(t, m.Predicate{Expression: "x < 0", Variable: "x", VariableType: "int", Probability: 0.7}, preds[0])
	})

	t.Run("rejects answers without an array", func(t *testing.T) {
		_, err := adapter.ParseProposals("no idea", vars)
		require.ErrorIs(t, err, m.ErrMalformedInput)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := adapter.ParseProposals("[{]", vars)
		require.ErrorIs(t, err, m.ErrMalformedInput)
	})
}

func TestOpenAIPredicateSource_Propose(t *testing.T) {
	var gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant",` +
			`"content":"[{\"variable\":\"x\",\"condition\":\"$ == 0\",\"probability\":0.6}]"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	source := adapter.NewOpenAIPredicateSource("test-key", server.URL+"/v1", "tiny-model", 0)
	assert.Equal(t, "openai", source.Name())

	preds, err := source.Propose(context.Background(), adapter.PredicateRequest{
		File: "calc.go", Line: 12, Method: "calc.Abs", Snippet: "if x < 0 {",
		Variables: []m.Variable{{Name: "x", Type: "int"}},
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "x == 0", preds[0].Expression)
	assert.Equal(t, "tiny-model", gotModel)
}

func TestOpenAIPredicateSource_NoVariablesSkipsRequest(t *testing.T) {
	source := adapter.NewOpenAIPredicateSource("key", "http://127.0.0.1:1/v1", "m", 0)

	preds, err := source.Propose(context.Background(), adapter.PredicateRequest{File: "calc.go", Line: 1})
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestCompositePredicateSource(t *testing.T) {
	req := adapter.PredicateRequest{File: "calc.go", Line: 12}

	first := adaptermocks.NewMockPredicateSource(t)
	first.EXPECT().Propose(mock.Anything, req).Return([]m.Predicate{{Expression: "a", Probability: 0.1}}, nil)

	broken := adaptermocks.NewMockPredicateSource(t)
	broken.EXPECT().Name().Return("broken")
	broken.EXPECT().Propose(mock.Anything, req).Return(nil, errors.New("unavailable"))

	second := adaptermocks.NewMockPredicateSource(t)
	second.EXPECT().Propose(mock.Anything, req).Return([]m.Predicate{{Expression: "b", Probability: 0.8}}, nil)

	source := adapter.NewCompositePredicateSource(first, broken, second)

	preds, err := source.Propose(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "b", preds[0].Expression)
	assert.Equal(t, "a", preds[1].Expression)
}

func TestCompositePredicateSource_Name(t *testing.T) {
	source := adapter.NewCompositePredicateSource(adapter.NewHeuristicPredicateSource(), adapter.NewTSVPredicateSource("x.tsv"))
	assert.Equal(t, "heuristic+file", source.Name())
}
