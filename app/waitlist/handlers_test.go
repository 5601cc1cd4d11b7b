package waitlist

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"skygen/waitlist-api/db"
	"skygen/waitlist-api/internal"
	"skygen/waitlist-api/internal/service"
	wlsvc "skygen/waitlist-api/internal/waitlist"
	"skygen/waitlist-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*gin.Engine, *internal.Deps) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	viper.Set("app.url", "http://test.local")
	viper.Set("mail.enabled", false)
	viper.Set("host.ssl.enabled", false)

	path := filepath.Join(t.TempDir(), "waitlist.db")

	gdb, err := gorm.Open(sqlite.Open("file:"+path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, filepath.Join("..", "..", "db", "migrations")))

	d := &internal.Deps{
		DB:       gdb,
		Waitlist: wlsvc.NewService(gdb),
		Mailer:   service.NewMailer(),
	}

	r := gin.New()
	r.Use(middleware.NewRequestIDMiddleware())

	session := middleware.NewSessionMiddleware(d.Waitlist)

	w := r.Group("/waitlist")
	{
		w.POST("/join", func(c *gin.Context) { Join(c, d) })
		w.POST("/verify", func(c *gin.Context) { VerifyPost(c, d) })
		w.GET("/verify", func(c *gin.Context) { VerifyGet(c, d) })
		w.GET("/dashboard", session, func(c *gin.Context) { Dashboard(c, d) })
		w.GET("/stats", func(c *gin.Context) { Stats(c, d) })
	}

	return r, d
}

func doJSON(r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// joinUser signs up an email and returns the response body plus the raw
// verification token mined out of the dev-mode verification_url
func joinUser(t *testing.T, r *gin.Engine, email string, refCode *string) (map[string]any, string) {
	t.Helper()

	body := map[string]any{"email": email}
	if refCode != nil {
		body["ref_code"] = *refCode
	}

	rec := doJSON(r, http.MethodPost, "/waitlist/join", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)

	url, ok := out["verification_url"].(string)
	require.True(t, ok, "verification_url missing with mail disabled")

	parts := strings.Split(url, "token=")
	require.Len(t, parts, 2)

	return out, parts[1]
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}

	t.Fatal("no session_token cookie set")
	return nil
}

func TestJoin(t *testing.T) {
	r, _ := newTestApp(t)

	out, token := joinUser(t, r, "a@x.com", nil)

	assert.Equal(t, true, out["success"])
	assert.Len(t, token, 64)

	user := out["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.EqualValues(t, 1, user["position"])
	assert.Len(t, user["ref_code"], 8)

	out, _ = joinUser(t, r, "b@x.com", nil)
	assert.EqualValues(t, 2, out["user"].(map[string]any)["position"])
}

func TestJoinDuplicateEmail(t *testing.T) {
	r, _ := newTestApp(t)

	joinUser(t, r, "a@x.com", nil)

	rec := doJSON(r, http.MethodPost, "/waitlist/join", map[string]any{"email": "a@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJoinInvalidInput(t *testing.T) {
	r, _ := newTestApp(t)

	rec := doJSON(r, http.MethodPost, "/waitlist/join", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodPost, "/waitlist/join", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/waitlist/join", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinWithRefCode(t *testing.T) {
	r, d := newTestApp(t)

	out, _ := joinUser(t, r, "a@x.com", nil)
	code := out["user"].(map[string]any)["ref_code"].(string)

	joinUser(t, r, "b@x.com", &code)

	a, err := d.Waitlist.GetUserByEmail("a@x.com")
	require.NoError(t, err)

	stats, err := d.Waitlist.GetReferralStats(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invited)

	// An unknown code doesn't block the signup
	bogus := "ZZZZ9999"
	out, _ = joinUser(t, r, "c@x.com", &bogus)
	assert.Equal(t, true, out["success"])
}

func TestVerifyPost(t *testing.T) {
	r, _ := newTestApp(t)

	_, token := joinUser(t, r, "a@x.com", nil)

	rec := doJSON(r, http.MethodPost, "/waitlist/verify", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	user := out["user"].(map[string]any)
	assert.Equal(t, true, user["email_verified"])

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 30*24*60*60, cookie.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Len(t, cookie.Value, 64)

	// Tokens are single use
	rec = doJSON(r, http.MethodPost, "/waitlist/verify", map[string]any{"token": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyPostBadInput(t *testing.T) {
	r, _ := newTestApp(t)

	rec := doJSON(r, http.MethodPost, "/waitlist/verify", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodPost, "/waitlist/verify", map[string]any{"token": strings.Repeat("f", 64)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyGet(t *testing.T) {
	r, _ := newTestApp(t)

	_, token := joinUser(t, r, "a@x.com", nil)

	rec := doJSON(r, http.MethodGet, "/waitlist/verify?token="+token, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = doJSON(r, http.MethodGet, "/waitlist/verify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing token", rec.Body.String())

	rec = doJSON(r, http.MethodGet, "/waitlist/verify?token="+strings.Repeat("f", 64), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard(t *testing.T) {
	r, _ := newTestApp(t)

	out, token := joinUser(t, r, "a@x.com", nil)
	code := out["user"].(map[string]any)["ref_code"].(string)

	rec := doJSON(r, http.MethodPost, "/waitlist/verify", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	// Sessions survive repeated use
	for i := 0; i < 2; i++ {
		rec = doJSON(r, http.MethodGet, "/waitlist/dashboard", nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	out = decode(t, rec)

	user := out["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, true, user["email_verified"])

	referral := out["referral"].(map[string]any)
	assert.Contains(t, referral["link"], "?ref="+code)
	assert.EqualValues(t, 0, referral["invited_count"])

	progress := out["progress"].(map[string]any)
	assert.Equal(t, "wl_joined", progress["current_level"])
	assert.Len(t, progress["levels"], 3)
}

func TestDashboardUnauthenticated(t *testing.T) {
	r, _ := newTestApp(t)

	rec := doJSON(r, http.MethodGet, "/waitlist/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodGet, "/waitlist/dashboard", nil,
		&http.Cookie{Name: "session_token", Value: strings.Repeat("f", 64)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStats(t *testing.T) {
	r, _ := newTestApp(t)

	out, _ := joinUser(t, r, "a@x.com", nil)
	code := out["user"].(map[string]any)["ref_code"].(string)
	joinUser(t, r, "b@x.com", &code)

	rec := doJSON(r, http.MethodGet, "/waitlist/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode(t, rec)
	assert.EqualValues(t, 2, stats["total_users"])
	assert.EqualValues(t, 1, stats["total_referrals"])
	assert.EqualValues(t, 0, stats["paid_referrals"])
}
