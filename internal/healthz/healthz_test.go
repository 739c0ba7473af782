package healthz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	r := New()
	r.Register("b", func(context.Context) error { return nil })
	r.Register("a", func(context.Context) error { return Degraded(errors.New("slow")) })

	res := r.Run(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	require.Len(t, res.Checks, 2)
	assert.Equal(t, "a", res.Checks[0].Name)
	assert.Equal(t, "slow", res.Checks[0].Message)

	r.Register("c", func(context.Context) error { return errors.New("down") })
	assert.Equal(t, StatusUnhealthy, r.Run(context.Background()).Status)
}

func TestDegradedNil(t *testing.T) {
	assert.NoError(t, Degraded(nil))
}

func TestHandlerStatusCodes(t *testing.T) {
	r := New()
	r.Register("ok", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, StatusHealthy, res.Status)

	r.Register("listener", func(context.Context) error { return errors.New("not serving") })
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
