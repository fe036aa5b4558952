package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(msisdn string) *http.Request {
	form := url.Values{
		"sessionId":   {"ATUid_42"},
		"phoneNumber": {msisdn},
		"text":        {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRateLimitBlocksRapidRepeat(t *testing.T) {
	e := echo.New()
	limited := 0
	mw := RateLimit(RateLimitOptions{
		Interval: time.Minute,
		OnLimited: func(c echo.Context) error {
			limited++
			return c.String(http.StatusOK, "END wait")
		},
	})
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "CON ok")
	})

	first := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(formRequest("+250788123456"), first)))
	assert.Equal(t, "CON ok", first.Body.String())

	second := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(formRequest("+250788123456"), second)))
	assert.Equal(t, "END wait", second.Body.String())
	assert.Equal(t, 1, limited)

	// A different subscriber is unaffected.
	other := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(formRequest("+250722000111"), other)))
	assert.Equal(t, "CON ok", other.Body.String())
}

func TestRateLimitDisabledWithoutInterval(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitOptions{})(func(c echo.Context) error {
		return c.String(http.StatusOK, "CON ok")
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(formRequest("+250788123456"), rec)))
		assert.Equal(t, "CON ok", rec.Body.String())
	}
}

func TestRecoverProducesTerminalReply(t *testing.T) {
	e := echo.New()
	handler := Recover("Icyo wahisemo ntigishoboye kumenyekana.")(func(echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	err := handler(e.NewContext(formRequest("+250788123456"), rec))
	require.NoError(t, err)
	assert.Equal(t, "END Icyo wahisemo ntigishoboye kumenyekana.", rec.Body.String())
}

func TestLoggerThreadsRequestContext(t *testing.T) {
	e := echo.New()
	var gotRID string
	handler := Logger(func(c echo.Context) error {
		rid, _ := c.Get("rid").(string)
		gotRID = rid
		return c.String(http.StatusOK, "CON ok")
	})

	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(formRequest("+250788123456"), rec)))
	assert.NotEmpty(t, gotRID)
}
