package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/mocks"
	"github.com/quantlab/quantjobs/internal/testutil"
)

func TestPipeline_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	source := mocks.NewMockDataSource(ctrl)
	runner := mocks.NewMockModelRunner(ctrl)
	objects := mocks.NewMockObjectStore(ctrl)
	p := MustNewPipeline(PipelineOptions{Source: source, Runner: runner, Objects: objects})

	rec := testutil.NewJobRecord().WithSymbols("AAPL", "MSFT").Build()
	prices := testutil.NewPriceTable(90, "AAPL", "MSFT")

	source.EXPECT().
		LoadPrices(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req core.LoadPricesRequest) (*core.PriceTable, error) {
			assert.Equal(t, rec.Descriptor.Symbols, req.Symbols)
			assert.Equal(t, rec.Descriptor.Start, req.Start)
			assert.Equal(t, rec.Descriptor.End, req.End)
			assert.Equal(t, rec.Descriptor.Interval, req.Interval)
			assert.Equal(t, rec.Descriptor.Vendor, req.Vendor)
			assert.Equal(t, rec.Descriptor.Adjusted, req.Adjusted)
			return prices, nil
		})
	runner.EXPECT().
		Execute(gomock.Any(), rec.Descriptor.Kind, rec.Descriptor.Params, prices).
		Return(&core.ModelResult{
			Metrics: map[string]float64{"mean_final_value": 1.05},
			Tables: []core.Table{
				{Name: "simulation_paths", CSV: []byte("step,path_1\n")},
			},
		}, nil)

	written := map[string]string{}
	objects.EXPECT().
		Write(gomock.Any(), rec.ID, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID, name, contentType string, data []byte) (string, error) {
			written[name] = contentType
			require.NotEmpty(t, data)
			if name == "metrics.json" {
				var m map[string]float64
				require.NoError(t, json.Unmarshal(data, &m))
				assert.Equal(t, 1.05, m["mean_final_value"])
			}
			return "jobs/" + id.String() + "/" + name, nil
		}).Times(3)

	out, err := p.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"prices.csv":           "text/csv",
		"metrics.json":         "application/json",
		"simulation_paths.csv": "text/csv",
	}, written)
	assert.Equal(t, 1.05, out.Metrics["mean_final_value"])
	assert.Equal(t, "jobs/"+rec.ID.String()+"/prices.csv", out.Artifacts["prices.csv"])
	assert.Len(t, out.Artifacts, 3)
}

func TestPipeline_LoadFailureStopsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	source := mocks.NewMockDataSource(ctrl)
	runner := mocks.NewMockModelRunner(ctrl)
	objects := mocks.NewMockObjectStore(ctrl)
	p := MustNewPipeline(PipelineOptions{Source: source, Runner: runner, Objects: objects})

	rec := testutil.NewJobRecord().Build()
	want := &core.DataUnavailableError{Vendor: "twelvedata", Err: errors.New("quota exceeded")}

	source.EXPECT().LoadPrices(gomock.Any(), gomock.Any()).Return(nil, want)

	_, err := p.Run(context.Background(), rec)
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "twelvedata", unavailable.Vendor)
}

func TestPipeline_ModelErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	source := mocks.NewMockDataSource(ctrl)
	runner := mocks.NewMockModelRunner(ctrl)
	objects := mocks.NewMockObjectStore(ctrl)
	p := MustNewPipeline(PipelineOptions{Source: source, Runner: runner, Objects: objects})

	rec := testutil.NewJobRecord().Build()
	prices := testutil.NewPriceTable(30, "AAPL", "MSFT")

	source.EXPECT().LoadPrices(gomock.Any(), gomock.Any()).Return(prices, nil)
	runner.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &core.ModelError{Kind: string(rec.Descriptor.Kind), Msg: "zero variance"})

	_, err := p.Run(context.Background(), rec)
	var modelErr *core.ModelError
	require.ErrorAs(t, err, &modelErr)
}

func TestPipeline_ArtifactWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	source := mocks.NewMockDataSource(ctrl)
	runner := mocks.NewMockModelRunner(ctrl)
	objects := mocks.NewMockObjectStore(ctrl)
	p := MustNewPipeline(PipelineOptions{Source: source, Runner: runner, Objects: objects})

	rec := testutil.NewJobRecord().Build()
	prices := testutil.NewPriceTable(30, "AAPL", "MSFT")

	source.EXPECT().LoadPrices(gomock.Any(), gomock.Any()).Return(prices, nil)
	runner.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&core.ModelResult{Metrics: map[string]float64{}}, nil)
	objects.EXPECT().
		Write(gomock.Any(), rec.ID, "prices.csv", gomock.Any(), gomock.Any()).
		Return("", errors.New("access denied"))

	_, err := p.Run(context.Background(), rec)
	var artifactErr *core.ArtifactWriteError
	require.ErrorAs(t, err, &artifactErr)
	assert.Equal(t, "prices.csv", artifactErr.Name)
}

func TestNewPipeline_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	source := mocks.NewMockDataSource(ctrl)
	runner := mocks.NewMockModelRunner(ctrl)
	objects := mocks.NewMockObjectStore(ctrl)

	for name, opts := range map[string]PipelineOptions{
		"missing source":  {Runner: runner, Objects: objects},
		"missing runner":  {Source: source, Objects: objects},
		"missing objects": {Source: source, Runner: runner},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPipeline(opts)
			require.Error(t, err)
		})
	}

	p, err := NewPipeline(PipelineOptions{Source: source, Runner: runner, Objects: objects})
	require.NoError(t, err)
	assert.Equal(t, defaultLoadTimeout, p.timeouts.Load)
	assert.Equal(t, defaultModelTimeout, p.timeouts.Model)
	assert.Equal(t, defaultWriteTimeout, p.timeouts.Write)
}
