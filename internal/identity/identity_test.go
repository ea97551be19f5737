package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(fixed string) (http.Handler, *string, *string) {
	var userID, sessionID string
	h := Middleware(fixed, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		sessionID = SessionIDFromContext(r.Context())
	}))
	return h, &userID, &sessionID
}

func TestMiddlewareUserHeader(t *testing.T) {
	h, userID, sessionID := capture("")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/files", nil)
	req.Header.Set(UserHeaderName, "alice@example")
	req.Header.Set(SessionHeaderName, "s-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "alice@example", *userID)
	assert.Equal(t, "s-123", *sessionID)
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddlewareFixedUserWins(t *testing.T) {
	h, userID, _ := capture("local")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeaderName, "mallory")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "local", *userID)
}

func TestMiddlewareAnonCookie(t *testing.T) {
	h, userID, sessionID := capture("")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?session_id=bad%20id", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonCookieName, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, *userID)
	assert.Regexp(t, `^anon_[a-f0-9]{32}$`, *userID)
	assert.Empty(t, *sessionID)

	first := *userID
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, first, *userID)
}
