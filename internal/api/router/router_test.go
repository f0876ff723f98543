package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikbhatt20/Helius-Dexer/internal/api/handler"
	"github.com/ritikbhatt20/Helius-Dexer/internal/connection"
	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/job"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
	"github.com/ritikbhatt20/Helius-Dexer/internal/vault"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
)

const (
	testSecret     = "test-jwt-secret"
	testWebhookKey = "Bearer webhook-secret"
	owner          = "owner-1"
	activeJobID    = "6f1c2c2e-5d9b-4f43-9a51-111111111111"
	pausedJobID    = "6f1c2c2e-5d9b-4f43-9a51-222222222222"
	missingJobID   = "6f1c2c2e-5d9b-4f43-9a51-333333333333"
	connID         = "0b8e3c1a-9f7d-4e2b-8c6a-444444444444"
)

type fakeConnections struct {
	testErr   error
	createErr error
	gotOwner  string
}

func (f *fakeConnections) Test(context.Context, domain.ConnectionInput) error { return f.testErr }

func (f *fakeConnections) Create(_ context.Context, ownerID string, in domain.ConnectionInput) (*domain.Connection, error) {
	f.gotOwner = ownerID
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.Connection{ID: connID, OwnerID: ownerID, Name: in.Name, Host: in.Host, Port: in.Port}, nil
}

func (f *fakeConnections) Get(_ context.Context, ownerID, id string) (*domain.Connection, error) {
	if id != connID {
		return nil, domain.ErrNotFound
	}
	return &domain.Connection{ID: id, OwnerID: ownerID}, nil
}

func (f *fakeConnections) List(_ context.Context, ownerID string) ([]domain.Connection, error) {
	f.gotOwner = ownerID
	return nil, nil
}

func (f *fakeConnections) Update(_ context.Context, ownerID, id string, p domain.ConnectionPatch) (*domain.Connection, error) {
	if p.Host != nil && *p.Host == "unreachable" {
		return nil, domain.ErrConnectionTestFailed
	}
	return &domain.Connection{ID: id, OwnerID: ownerID}, nil
}

func (f *fakeConnections) Delete(context.Context, string, string) error { return nil }

type fakeJobs struct {
	createErr error
	gotFilter storage.JobFilter
	page      job.Page
	logs      []domain.JobLog
}

func (f *fakeJobs) Create(_ context.Context, ownerID string, in job.CreateInput) (*domain.Job, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.Job{
		ID:           activeJobID,
		OwnerID:      ownerID,
		ConnectionID: in.ConnectionID,
		JobType:      domain.JobType(in.JobType),
		TargetTable:  in.TargetTable,
		Status:       domain.JobStatusPending,
	}, nil
}

func (f *fakeJobs) Get(_ context.Context, _, id string) (*domain.Job, error) {
	if id == missingJobID {
		return nil, domain.ErrNotFound
	}
	return &domain.Job{ID: id, Status: domain.JobStatusActive}, nil
}

func (f *fakeJobs) List(_ context.Context, filter storage.JobFilter) (job.Page, error) {
	f.gotFilter = filter
	return f.page, nil
}

func (f *fakeJobs) Pause(_ context.Context, _, id string) (*domain.Job, error) {
	if id == pausedJobID {
		return nil, domain.ErrInvalidTransition
	}
	return &domain.Job{ID: id, Status: domain.JobStatusPaused}, nil
}

func (f *fakeJobs) Resume(_ context.Context, _, id string) (*domain.Job, error) {
	return &domain.Job{ID: id, Status: domain.JobStatusActive}, nil
}

func (f *fakeJobs) Complete(_ context.Context, _, id string) (*domain.Job, error) {
	return &domain.Job{ID: id, Status: domain.JobStatusCompleted}, nil
}

func (f *fakeJobs) Delete(_ context.Context, _, id string) error {
	if id == missingJobID {
		return domain.ErrNotFound
	}
	return nil
}

func (f *fakeJobs) Logs(context.Context, string, string, int) ([]domain.JobLog, error) {
	return f.logs, nil
}

type lookup map[string]*domain.Job

func (l lookup) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	if j, ok := l[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

type recordingQueue struct {
	events []queue.WebhookEvent
	err    error
}

func (q *recordingQueue) EnqueueEvent(_ context.Context, ev queue.WebhookEvent) error {
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

type testServer struct {
	engine      *gin.Engine
	connections *fakeConnections
	jobs        *fakeJobs
	events      *recordingQueue
	metrics     *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		connections: &fakeConnections{},
		jobs:        &fakeJobs{},
		events:      &recordingQueue{},
		metrics:     metrics.New(true),
	}
	s.engine = SetupRouter(&handler.Dependencies{
		Logger:      logger.NewDiscard().Logger,
		Connections: s.connections,
		Jobs:        s.jobs,
		Events:      s.events,
		JobLookup: lookup{
			activeJobID: {ID: activeJobID, JobType: domain.JobTypeTokenPrices, Status: domain.JobStatusActive},
			pausedJobID: {ID: pausedJobID, JobType: domain.JobTypeTokenPrices, Status: domain.JobStatusPaused},
		},
		Metrics:           s.metrics,
		JWTSecret:         testSecret,
		WebhookAuthHeader: testWebhookKey,
		MaxBodyBytes:      1024,
	})
	return s
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) authed(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + signToken(t, testSecret, owner),
	})
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env handler.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]func(ctx context.Context) error
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"status":"ready"`},
		},
		{
			name: "all healthy",
			checks: map[string]func(ctx context.Context) error{
				"database": func(context.Context) error { return nil },
				"rabbitmq": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"database":"ok"`, `"rabbitmq":"ok"`},
		},
		{
			name: "broker down",
			checks: map[string]func(ctx context.Context) error{
				"database": func(context.Context) error { return nil },
				"rabbitmq": func(context.Context) error { return errors.New("connection closed") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"status":"not_ready"`, `"rabbitmq":"unavailable"`, `"database":"ok"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			engine := SetupRouter(&handler.Dependencies{
				Logger:    logger.NewDiscard().Logger,
				Metrics:   metrics.New(false),
				Readiness: tt.checks,
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			for _, b := range tt.wantBody {
				assert.Contains(t, w.Body.String(), b)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "wrong signature", header: "Bearer " + signToken(t, "other-secret", owner)},
		{name: "no subject", header: "Bearer " + signToken(t, testSecret, "")},
		{name: "garbage", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/jobs", "", map[string]string{"Authorization": tt.header})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, handler.CodeUnauthorized, errorCode(t, w))
		})
	}

	t.Run("valid token scopes to subject", func(t *testing.T) {
		w := s.authed(t, http.MethodGet, "/api/v1/connections", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, owner, s.connections.gotOwner)
	})
}

func TestWebhookIngress(t *testing.T) {
	auth := map[string]string{"Authorization": testWebhookKey}
	tx := `{"signature":"sig1","type":"SWAP"}`

	tests := []struct {
		name     string
		path     string
		body     string
		header   map[string]string
		wantCode int
		wantErr  string
		queued   bool
	}{
		{
			name:     "bare array is normalized and queued",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     "[" + tx + "]",
			header:   auth,
			wantCode: http.StatusAccepted,
			queued:   true,
		},
		{
			name:     "object form is queued",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     `{"transactions":[` + tx + `]}`,
			header:   auth,
			wantCode: http.StatusAccepted,
			queued:   true,
		},
		{
			name:     "wrong secret",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     "[" + tx + "]",
			header:   map[string]string{"Authorization": "Bearer nope"},
			wantCode: http.StatusUnauthorized,
			wantErr:  handler.CodeUnauthorized,
		},
		{
			name:     "missing secret",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     "[" + tx + "]",
			wantCode: http.StatusUnauthorized,
			wantErr:  handler.CodeUnauthorized,
		},
		{
			name:     "unknown job type",
			path:     "/webhooks/nft_sales/" + activeJobID,
			body:     "[]",
			header:   auth,
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "job id not a uuid",
			path:     "/webhooks/token_prices/abc",
			body:     "[]",
			header:   auth,
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "missing transactions field",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     `{}`,
			header:   auth,
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "body not json",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     `hello`,
			header:   auth,
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "body too large",
			path:     "/webhooks/token_prices/" + activeJobID,
			body:     "[" + strings.Repeat(" ", 2048) + "]",
			header:   auth,
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "unknown job",
			path:     "/webhooks/token_prices/" + missingJobID,
			body:     "[]",
			header:   auth,
			wantCode: http.StatusNotFound,
			wantErr:  handler.CodeNotFound,
		},
		{
			name:     "job type does not match job",
			path:     "/webhooks/nft_bids/" + activeJobID,
			body:     "[]",
			header:   auth,
			wantCode: http.StatusNotFound,
			wantErr:  handler.CodeNotFound,
		},
		{
			name:     "paused job",
			path:     "/webhooks/token_prices/" + pausedJobID,
			body:     "[]",
			header:   auth,
			wantCode: http.StatusConflict,
			wantErr:  handler.CodeJobNotAccepting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(t, http.MethodPost, tt.path, tt.body, tt.header)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
			if !tt.queued {
				assert.Empty(t, s.events.events)
				return
			}

			require.Len(t, s.events.events, 1)
			ev := s.events.events[0]
			assert.Equal(t, domain.JobTypeTokenPrices, ev.JobType)
			assert.Equal(t, activeJobID, ev.JobID)
			assert.JSONEq(t, `{"transactions":[`+tx+`]}`, string(ev.Payload))
		})
	}
}

func TestWebhookIngress_EnqueueFailure(t *testing.T) {
	s := newTestServer(t)
	s.events.err = errors.New("broker down")

	w := s.do(t, http.MethodPost, "/webhooks/token_prices/"+activeJobID, "[]",
		map[string]string{"Authorization": testWebhookKey})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, handler.CodeInternal, errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "broker down")
}

func TestConnectionRoutes(t *testing.T) {
	t.Run("create omits password", func(t *testing.T) {
		s := newTestServer(t)

		w := s.authed(t, http.MethodPost, "/api/v1/connections",
			`{"name":"main","host":"db","port":5432,"username":"u","password":"hunter2","database_name":"d"}`)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "hunter2")
		assert.NotContains(t, w.Body.String(), "password")
		assert.Equal(t, owner, s.connections.gotOwner)
	})

	t.Run("create with unreachable database", func(t *testing.T) {
		s := newTestServer(t)
		s.connections.createErr = domain.ErrConnectionTestFailed

		w := s.authed(t, http.MethodPost, "/api/v1/connections", `{"name":"main"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, handler.CodeConnectionTestFailed, errorCode(t, w))
	})

	t.Run("test reports failure in body", func(t *testing.T) {
		s := newTestServer(t)
		s.connections.testErr = domain.ErrConnectionTestFailed

		w := s.authed(t, http.MethodPost, "/api/v1/connections/test", `{"host":"db"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"could not connect to database with provided credentials"}`, w.Body.String())
	})

	t.Run("update that fails retest", func(t *testing.T) {
		s := newTestServer(t)

		w := s.authed(t, http.MethodPut, "/api/v1/connections/"+connID, `{"host":"unreachable"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, handler.CodeConnectionTestFailed, errorCode(t, w))
	})

	t.Run("get unknown", func(t *testing.T) {
		s := newTestServer(t)

		w := s.authed(t, http.MethodGet, "/api/v1/connections/"+missingJobID, "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, handler.CodeNotFound, errorCode(t, w))
	})

	t.Run("malformed id", func(t *testing.T) {
		s := newTestServer(t)

		w := s.authed(t, http.MethodDelete, "/api/v1/connections/123", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

type acceptingTester struct{}

func (acceptingTester) Probe(context.Context, domain.ConnectionParams) error { return nil }

func TestCreateConnection_WithoutName(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := storage.NewStorage(sqlx.NewDb(db, "postgres"), logger.NewDiscard().Logger)

	v, err := vault.New(bytes.Repeat([]byte{1}, vault.KeySize))
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO connections")).
		WithArgs(sqlmock.AnyArg(), owner, "db.example.com/d", "db.example.com", 5432, "u", sqlmock.AnyArg(), "d", false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	engine := SetupRouter(&handler.Dependencies{
		Logger:      logger.NewDiscard().Logger,
		Connections: connection.NewRegistry(store, acceptingTester{}, v, logger.NewDiscard().Logger),
		Metrics:     metrics.New(false),
		JWTSecret:   testSecret,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections", strings.NewReader(
		`{"host":"db.example.com","port":5432,"username":"u","password":"p","database_name":"d","ssl":false}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, owner))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	var body domain.Connection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "db.example.com/d", body.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRoutes(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		createErr error
		wantCode  int
		wantErr   string
	}{
		{
			name:     "create",
			method:   http.MethodPost,
			path:     "/api/v1/jobs",
			body:     `{"connection_id":"` + connID + `","job_type":"token_prices","configuration":{},"target_table":"prices"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "create missing target table",
			method:   http.MethodPost,
			path:     "/api/v1/jobs",
			body:     `{"connection_id":"` + connID + `","job_type":"token_prices"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:      "create with bad configuration",
			method:    http.MethodPost,
			path:      "/api/v1/jobs",
			body:      `{"connection_id":"` + connID + `","job_type":"nft_bids","configuration":{"marketplaces":1},"target_table":"bids"}`,
			createErr: domain.NewValidationError("configuration.marketplaces", "must be an array of strings"),
			wantCode:  http.StatusBadRequest,
			wantErr:   handler.CodeValidation,
		},
		{
			name:      "create with foreign connection",
			method:    http.MethodPost,
			path:      "/api/v1/jobs",
			body:      `{"connection_id":"` + connID + `","job_type":"token_prices","target_table":"prices"}`,
			createErr: domain.ErrNotFound,
			wantCode:  http.StatusNotFound,
			wantErr:   handler.CodeNotFound,
		},
		{
			name:     "get",
			method:   http.MethodGet,
			path:     "/api/v1/jobs/" + activeJobID,
			wantCode: http.StatusOK,
		},
		{
			name:     "get missing",
			method:   http.MethodGet,
			path:     "/api/v1/jobs/" + missingJobID,
			wantCode: http.StatusNotFound,
			wantErr:  handler.CodeNotFound,
		},
		{
			name:     "pause",
			method:   http.MethodPost,
			path:     "/api/v1/jobs/" + activeJobID + "/pause",
			wantCode: http.StatusOK,
		},
		{
			name:     "pause rejected by state machine",
			method:   http.MethodPost,
			path:     "/api/v1/jobs/" + pausedJobID + "/pause",
			wantCode: http.StatusConflict,
			wantErr:  handler.CodeInvalidTransition,
		},
		{
			name:     "resume",
			method:   http.MethodPost,
			path:     "/api/v1/jobs/" + pausedJobID + "/resume",
			wantCode: http.StatusOK,
		},
		{
			name:     "complete",
			method:   http.MethodPost,
			path:     "/api/v1/jobs/" + activeJobID + "/complete",
			wantCode: http.StatusOK,
		},
		{
			name:     "delete missing",
			method:   http.MethodDelete,
			path:     "/api/v1/jobs/" + missingJobID,
			wantCode: http.StatusNotFound,
			wantErr:  handler.CodeNotFound,
		},
		{
			name:     "list with unknown status",
			method:   http.MethodGet,
			path:     "/api/v1/jobs?status=running",
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
		{
			name:     "list with bad cursor",
			method:   http.MethodGet,
			path:     "/api/v1/jobs?cursor=bm9wZQ",
			wantCode: http.StatusBadRequest,
			wantErr:  handler.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.jobs.createErr = tt.createErr

			w := s.authed(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
		})
	}
}

func TestListJobs_Pagination(t *testing.T) {
	s := newTestServer(t)
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.jobs.page = job.Page{
		Jobs: []*domain.Job{{ID: activeJobID, Status: domain.JobStatusActive, CreatedAt: createdAt}},
		Next: &storage.JobCursor{CreatedAt: createdAt, JobID: activeJobID},
	}

	w := s.authed(t, http.MethodGet, "/api/v1/jobs?page_size=500&job_type=token_prices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs       []json.RawMessage `json:"jobs"`
		NextCursor string            `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)
	require.NotEmpty(t, resp.NextCursor)

	assert.Equal(t, owner, s.jobs.gotFilter.OwnerID)
	assert.Equal(t, 100, s.jobs.gotFilter.PageSize)
	assert.Equal(t, "token_prices", s.jobs.gotFilter.JobType)
	assert.Nil(t, s.jobs.gotFilter.Cursor)

	w = s.authed(t, http.MethodGet, "/api/v1/jobs?cursor="+resp.NextCursor, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, s.jobs.gotFilter.Cursor)
	assert.Equal(t, activeJobID, s.jobs.gotFilter.Cursor.JobID)
	assert.True(t, createdAt.Equal(s.jobs.gotFilter.Cursor.CreatedAt))
	assert.Equal(t, 20, s.jobs.gotFilter.PageSize)
}

func TestJobLogs(t *testing.T) {
	s := newTestServer(t)

	w := s.authed(t, http.MethodGet, "/api/v1/jobs/"+activeJobID+"/logs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logs":[]}`, w.Body.String())

	w = s.authed(t, http.MethodGet, "/api/v1/jobs/"+activeJobID+"/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/webhooks/token_prices/"+pausedJobID, "[]",
		map[string]string{"Authorization": testWebhookKey})

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dexer_webhook_events_rejected_total{reason="job_status"} 1`)
}
