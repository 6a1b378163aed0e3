package healthcheck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/pmoves-ai/pulse/internal/healthcheck"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type staticClient bool

func (c staticClient) IsHealthy(context.Context) bool { return bool(c) }

func TestHealthCheck(t *testing.T) {
	cases := []struct {
		Name         string
		Client       Client
		ExpectedCode int
	}{
		{
			Name:         "ClientIsHealthy",
			Client:       staticClient(true),
			ExpectedCode: http.StatusOK,
		},
		{
			Name:         "ClientIsUnhealthy",
			Client:       staticClient(false),
			ExpectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			router := gin.New()
			Configure(router, tc.Client, time.Now())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != tc.ExpectedCode {
				t.Fatalf("Expected status code: %d; Received status code: %d", tc.ExpectedCode, w.Code)
			}
		})
	}
}
