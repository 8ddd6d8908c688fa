package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/service/ratelimit"
	"TrendLab/internal/services/features"
	"TrendLab/internal/usecase"
	"TrendLab/pkg/queue"
)

type stubBars struct {
	bars []models.RawBar
}

func (s *stubBars) GetBars(context.Context, string, drepo.Timeframe, time.Time, time.Time, int) ([]models.RawBar, error) {
	return s.bars, nil
}

type stubScalers struct {
	blobs map[string][]byte
}

func (s *stubScalers) Save(_ context.Context, name string, blob []byte) error {
	s.blobs[name] = blob
	return nil
}

func (s *stubScalers) Load(_ context.Context, name string) ([]byte, error) {
	b, ok := s.blobs[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

func (s *stubScalers) List(context.Context) ([]string, error) { return nil, nil }
func (s *stubScalers) Close() error                           { return nil }

type doneJob struct {
	results queue.ResultSetter
}

func (j *doneJob) Name() string { return "stub-dataset" }
func (j *doneJob) Type() string { return usecase.DatasetJobType }

func (j *doneJob) Handle(ctx context.Context, msg queue.Message) error {
	return j.results.SetResult(ctx, msg.ID, map[string]int{"episodes": 3})
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func zigzagBars() []models.RawBar {
	var out []models.RawBar
	price := 100.0
	for i := 0; i < 33; i++ {
		if i > 0 {
			if (i-1)/8%2 == 0 {
				price *= 1.015
			} else {
				price *= 0.985
			}
		}
		out = append(out, models.RawBar{
			Ticker: "AAPL",
			Time:   models.RawTime(strconv.Itoa(1700000000 + i*86400)),
			Close:  price,
		})
	}
	return out
}

// identityScaler stores zero means and unit stds, so scaling leaves the
// encoded matrix unchanged.
func identityScaler(t *testing.T, strategy features.ImputeStrategy) []byte {
	t.Helper()
	means := make([]float64, features.NumFeatures)
	stds := make([]float64, features.NumFeatures)
	for i := range stds {
		stds[i] = 1
	}
	blob, err := json.Marshal(map[string]interface{}{"means": means, "stds": stds, "impute": strategy})
	require.NoError(t, err)
	return blob
}

func newTestServer(t *testing.T, opts ...Option) *echo.Echo {
	t.Helper()
	src := &stubBars{bars: zigzagBars()}
	pipe := usecase.NewPipelineUseCase(nil, nil, nil, 1, nil)
	scalers := &stubScalers{blobs: map[string][]byte{
		"narrow": []byte(`{"means":[0,0,0],"stds":[1,1,1]}`),
		"zeroed": identityScaler(t, features.ImputeZero),
	}}
	overlay := usecase.NewOverlayUseCase(src, pipe, scalers, nil, nil)
	market := usecase.NewMarketDataUseCase(src, nil, nil, time.Minute)

	job := &doneJob{}
	q := queue.NewLocalQueue(nil, &queue.QueueConfig{Workers: 1}, job)
	job.results = q
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	e := echo.New()
	NewAPIHandler(nil, market, pipe, overlay, q, opts...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestBars(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(e, http.MethodGet, "/api/bars?ticker=aapl&timeframe=1Day", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(33), list.Total)

	rec, env = do(e, http.MethodGet, "/api/bars", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestEnrich_InvalidTimestampIsBadRequest(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(e, http.MethodPost, "/api/enrich", `{"bars":[{"ticker":"AAPL","time":"noon","close":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_BAD_REQUEST")
}

func TestBuildEpisodes(t *testing.T) {
	e := newTestServer(t)
	body, err := json.Marshal(map[string]interface{}{"bars": zigzagBars(), "threshold": 0.05})
	require.NoError(t, err)

	rec, env := do(e, http.MethodPost, "/api/episodes", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	var res EpisodesResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Len(t, res.Episodes, 4)
}

func TestEpisodes_UsesTimeframePolicy(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(e, http.MethodGet, "/api/episodes?ticker=AAPL&timeframe=1Hour", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res EpisodesResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 0.03, res.Threshold)
	assert.Equal(t, "1Hour", res.Timeframe)
}

func TestFeatures_ScalerWidthMismatchIs422(t *testing.T) {
	e := newTestServer(t)
	eps := usecase.NewPipelineUseCase(nil, nil, nil, 1, nil)
	built, err := eps.EpisodesFromRaw(context.Background(), zigzagBars(), 0.05)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{"episodes": built, "scaler": "narrow"})
	require.NoError(t, err)

	rec, _ := do(e, http.MethodPost, "/api/features", string(body))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body, _ = json.Marshal(map[string]interface{}{"episodes": built, "strategy": "zero"})
	rec, env := do(e, http.MethodPost, "/api/features", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	var res FeaturesResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Matrix, len(built))
	assert.Len(t, res.Matrix[0], len(res.FeatureNames))
}

func TestFeatures_NamedScalerImputesAsTrained(t *testing.T) {
	e := newTestServer(t)
	built, err := usecase.NewPipelineUseCase(nil, nil, nil, 1, nil).EpisodesFromRaw(context.Background(), zigzagBars(), 0.05)
	require.NoError(t, err)
	require.NotEmpty(t, features.MissingValueReport(built, nil))

	body, err := json.Marshal(map[string]interface{}{"episodes": built, "strategy": "sentinel", "scaler": "zeroed"})
	require.NoError(t, err)
	rec, env := do(e, http.MethodPost, "/api/features", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res FeaturesResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "zero", res.Strategy)
	assert.Equal(t, features.BuildFeatureMatrix(built, features.ImputeZero, nil), res.Matrix)
}

func TestPredict_WithoutClassifierIs500AndMissingScalerIs404(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(e, http.MethodGet, "/api/predict?ticker=AAPL", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = do(e, http.MethodGet, "/api/predict", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasets_EnqueueAndPoll(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(e, http.MethodPost, "/api/datasets", `{"tickers":["AAPL","MSFT"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created["id"])

	require.Eventually(t, func() bool {
		rec, env := do(e, http.MethodGet, "/api/datasets/"+created["id"], "")
		if rec.Code != http.StatusOK {
			return false
		}
		var st queue.JobStatus
		return json.Unmarshal(env.Data, &st) == nil && st.State == queue.StateDone
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ = do(e, http.MethodGet, "/api/datasets/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(e, http.MethodPost, "/api/datasets", `{"tickers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(0, 0)
	lim := ratelimit.New(1, 1, ratelimit.WithClock(func() time.Time { return now }))
	e := newTestServer(t, WithLimiter(lim))

	rec, _ := do(e, http.MethodGet, "/api/bars?ticker=AAPL", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(e, http.MethodGet, "/api/bars?ticker=AAPL", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
