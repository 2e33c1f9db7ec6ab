package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie/internal/auth/guard"
	"calorie/internal/auth/models"
	"calorie/internal/platform/logger"
	"calorie/pkg/testutil"
)

type fixedState models.AuthState

func (f fixedState) Get() models.AuthState { return models.AuthState(f) }

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestGuard(t *testing.T) {
	g := guard.New("/auth/sign-in", "/(tabs)/home")
	signedIn := fixedState(models.NewAuthState(&models.Session{AccessToken: "a", User: models.Identity{ID: "u1"}}, true))
	signedOut := fixedState(models.NewAuthState(nil, true))
	loading := fixedState(models.AuthState{})

	serve := func(states StateReader, class guard.RouteClass) *httptest.ResponseRecorder {
		h := Guard(g, states, class, logger.Discard())(noContent)
		return testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/x"))
	}

	testutil.Given(t, "bootstrap has not resolved", func(t *testing.T) {
		testutil.Then(t, "every route answers 503 with Retry-After", func(t *testing.T) {
			for _, class := range []guard.RouteClass{guard.Public, guard.Protected} {
				rr := serve(loading, class)
				assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
				assert.Equal(t, "1", rr.Header().Get("Retry-After"))
			}
		})
	})

	testutil.Given(t, "a signed-out user", func(t *testing.T) {
		testutil.When(t, "a protected route is requested", func(t *testing.T) {
			rr := serve(signedOut, guard.Protected)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "/auth/sign-in", rr.Header().Get("Location"))
		})
		testutil.When(t, "a public route is requested", func(t *testing.T) {
			assert.Equal(t, http.StatusNoContent, serve(signedOut, guard.Public).Code)
		})
	})

	testutil.Given(t, "a signed-in user", func(t *testing.T) {
		testutil.When(t, "a public route is requested", func(t *testing.T) {
			rr := serve(signedIn, guard.Public)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "/(tabs)/home", rr.Header().Get("Location"))
		})
		testutil.When(t, "a protected route is requested", func(t *testing.T) {
			assert.Equal(t, http.StatusNoContent, serve(signedIn, guard.Protected).Code)
		})
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/")
	req.Header.Set("X-Request-ID", "abc-123")
	rr := testutil.DoRequest(h, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/"))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
	assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
}

func TestLoggerAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info")
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	h := Logger(log, nil)(Recovery(log)(panicking))
	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/explode"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"status":500`)
	assert.Contains(t, buf.String(), `"route":"/explode"`)
}
