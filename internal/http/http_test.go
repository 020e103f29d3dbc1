package http

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/heatpump-outbox/internal/config"
	"github.com/allisson/heatpump-outbox/internal/metrics"
	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
	settingsHTTP "github.com/allisson/heatpump-outbox/internal/settings/http"
	"github.com/allisson/heatpump-outbox/internal/settings/http/mocks"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type routerFixture struct {
	server   *Server
	settings *mocks.MockSettingsUseCase
	outbox   *mocks.MockOutboxUseCase
}

// newRouterFixture builds a server with the full settings router over mocked use cases.
func newRouterFixture(t *testing.T, db *sql.DB, provider *metrics.Provider) *routerFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &routerFixture{
		settings: &mocks.MockSettingsUseCase{},
		outbox:   &mocks.MockOutboxUseCase{},
	}
	handler := settingsHTTP.NewSettingsHandler(f.settings, f.outbox, discardLogger())

	f.server = NewServer(db, "localhost", 8080, discardLogger())
	f.server.SetupRouter(ctx, &config.Config{
		LogLevel:                "info",
		RateLimitEnabled:        true,
		RateLimitRequestsPerSec: 1,
		RateLimitBurst:          1,
		MetricsNamespace:        "hp",
	}, handler, provider)
	require.NotNil(t, f.server.GetHandler())
	return f
}

func (f *routerFixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.GetHandler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestServer_Probes(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		f := newRouterFixture(t, nil, nil)

		w := f.do(http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	})

	t.Run("Ready_NoDatabase", func(t *testing.T) {
		f := newRouterFixture(t, nil, nil)

		w := f.do(http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"not_ready","components":{"database":"error"}}`, w.Body.String())
	})

	t.Run("Ready_DatabasePings", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		sqlMock.ExpectPing()

		f := newRouterFixture(t, db, nil)

		w := f.do(http.MethodGet, "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","components":{"database":"ok"}}`, w.Body.String())
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestServer_SettingsRoutes(t *testing.T) {
	t.Run("Get_UnknownDevice", func(t *testing.T) {
		f := newRouterFixture(t, nil, nil)
		f.settings.On("Get", mock.Anything, "hp-1").
			Return((*settingsDomain.Setting)(nil), settingsDomain.ErrSettingNotFound).
			Once()

		w := f.do(http.MethodGet, "/api/v1/heatpump/settings/hp-1")
		assert.Equal(t, http.StatusNotFound, w.Code)

		requestID, err := uuid.Parse(w.Header().Get("X-Request-Id"))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), requestID.Version())
		assert.Contains(t, w.Body.String(), requestID.String())
		f.settings.AssertExpectations(t)
	})

	t.Run("MetricsEndpointNotExposed", func(t *testing.T) {
		f := newRouterFixture(t, nil, nil)
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/metrics").Code)
	})

	t.Run("RequestsRecordedByRoute", func(t *testing.T) {
		provider, err := metrics.NewProvider("hp")
		require.NoError(t, err)
		defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

		f := newRouterFixture(t, nil, provider)
		f.settings.On("Get", mock.Anything, "hp-7").
			Return((*settingsDomain.Setting)(nil), settingsDomain.ErrSettingNotFound).
			Once()
		f.do(http.MethodGet, "/api/v1/heatpump/settings/hp-7")

		w := httptest.NewRecorder()
		provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, w.Body.String(), `path="/api/v1/heatpump/settings/:device_id"`)
		assert.NotContains(t, w.Body.String(), "hp-7")
	})
}

func TestCustomLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{name: "Success", status: http.StatusAccepted, level: "level=INFO"},
		{name: "ClientError", status: http.StatusUnprocessableEntity, level: "level=WARN"},
		{name: "ServerError", status: http.StatusInternalServerError, level: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			router := gin.New()
			router.Use(CustomLoggerMiddleware(logger))
			router.PATCH("/settings/:device_id", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/settings/hp-1?dry=1", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), "/settings/hp-1?dry=1")
		})
	}
}

func TestServer_RecoversFromPanic(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("handler bug")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	t.Run("Error_WithoutRouter", func(t *testing.T) {
		server := NewServer(nil, "localhost", 0, discardLogger())
		assert.Nil(t, server.GetHandler())
		assert.Error(t, server.Start(context.Background()))
	})

	t.Run("Success_GracefulShutdown", func(t *testing.T) {
		f := newRouterFixture(t, nil, nil)
		f.server.server.Addr = "127.0.0.1:0"

		errCh := make(chan error, 1)
		go func() { errCh <- f.server.Start(context.Background()) }()
		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, f.server.Shutdown(ctx))

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}

func TestMetricsServer_Handler(t *testing.T) {
	provider, err := metrics.NewProvider("hp")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	handler := NewMetricsServer("localhost", 8081, discardLogger(), provider).GetHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
