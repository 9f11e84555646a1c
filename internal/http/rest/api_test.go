package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/agent"
	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/http/rest"
	"github.com/fetchkit/fetchkit/internal/storage"
	"github.com/fetchkit/fetchkit/internal/telemetry"
	"github.com/fetchkit/fetchkit/internal/unpack"
)

type memoryRepo struct {
	mu   sync.Mutex
	jobs []storage.JobRecord
}

func (r *memoryRepo) TrackJob(id string, kind storage.JobKind, source, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = append(r.jobs, storage.JobRecord{ID: id, Kind: kind, Source: source, Destination: destination, Status: storage.StatusQueued})

	return nil
}

func (r *memoryRepo) UpdateJobStatus(id string, status storage.JobStatus, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.jobs {
		if r.jobs[i].ID == id {
			r.jobs[i].Status = status
			r.jobs[i].Detail = detail
		}
	}

	return nil
}

func (r *memoryRepo) GetJobs(limit int) ([]storage.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]storage.JobRecord{}, r.jobs...), nil
}

// newTestHandler builds the API over an agent with no running workers,
// so enqueued jobs stay queued.
func newTestHandler(t *testing.T, queueSize int) (http.Handler, *memoryRepo) {
	t.Helper()

	tel, err := telemetry.New(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	repo := &memoryRepo{}
	worker := agent.New(fetch.New(fetch.Options{}), unpack.NewExtractor(), repo, tel, queueSize)

	return rest.NewAPI(worker, repo, 50).Handler(tel.Handler()), repo
}

func TestCreateDownload(t *testing.T) {
	handler, repo := newTestHandler(t, 4)

	body := `{"url": "http://example.com/pkg.zip", "destination": "` + filepath.Join(t.TempDir(), "pkg.zip") + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/downloads", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		ID string `json:"id"`
	}

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)

	jobs, err := repo.GetJobs(50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, storage.JobDownload, jobs[0].Kind)
	assert.Equal(t, storage.StatusQueued, jobs[0].Status)
}

func TestCreateDownloadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"destination": "/tmp/x"}`},
		{"missing destination", `{"url": "http://example.com/a"}`},
		{"malformed json", `{"url": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestHandler(t, 4)

			req := httptest.NewRequest(http.MethodPost, "/v1/downloads", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateExtraction(t *testing.T) {
	handler, repo := newTestHandler(t, 4)

	body := `{"archive": "/data/pkg.zip", "destination": "/data/out/"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extractions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	jobs, err := repo.GetJobs(50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, storage.JobExtract, jobs[0].Kind)
}

func TestQueueFullResponse(t *testing.T) {
	handler, _ := newTestHandler(t, 1)

	body := `{"url": "http://example.com/pkg.zip", "destination": "/tmp/pkg.zip"}`

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/downloads", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/downloads", strings.NewReader(body)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestProgressWhenIdle(t *testing.T) {
	handler, _ := newTestHandler(t, 4)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]struct {
		Active     bool `json:"active"`
		Percentage int  `json:"percentage"`
	}

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp, "download")
	require.Contains(t, resp, "extract")
	assert.False(t, resp["download"].Active)
	assert.Equal(t, -1, resp["download"].Percentage)
}

func TestAbortWithNothingInFlight(t *testing.T) {
	handler, _ := newTestHandler(t, 4)

	for _, path := range []string{"/v1/downloads/abort", "/v1/extractions/abort"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestListJobs(t *testing.T) {
	handler, repo := newTestHandler(t, 4)

	require.NoError(t, repo.TrackJob("job-1", storage.JobDownload, "http://example.com/a", "/tmp/a"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []storage.JobRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
}
