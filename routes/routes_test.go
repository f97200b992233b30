package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend/configs"
	"backend/entity"
	"backend/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, configs.Migrate(db))

	cfg := &configs.Config{JWTSecret: "test-secret", FrontendURL: "http://localhost"}
	r := gin.New()
	limiter := middlewares.NewClientLimiter(rate.Every(time.Minute), 1)
	Setup(r, db, cfg, limiter)
	return r, db
}

func seedUser(t *testing.T, db *gorm.DB, utorid, password string, role entity.Role, points int, verified bool) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := entity.User{
		Utorid:   utorid,
		Name:     "Test " + utorid,
		Email:    utorid + "@mail.utoronto.ca",
		Password: string(hash),
		Role:     role,
		Points:   points,
		Verified: verified,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, r http.Handler, utorid, password string) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/auth/tokens", "", gin.H{
		"utorid":   utorid,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, ok := decode(t, w)["token"].(string)
	require.True(t, ok)
	return token
}

func TestLoginAndMe(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "custom01", "Right@Pass1", entity.RoleRegular, 42, true)

	w := doJSON(r, http.MethodPost, "/auth/tokens", "", gin.H{
		"utorid":   "custom01",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token := login(t, r, "custom01", "Right@Pass1")

	w = doJSON(r, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "custom01", body["utorid"])
	require.Equal(t, float64(42), body["points"])

	w = doJSON(r, http.MethodGet, "/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleEnforcement(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "custom01", "Right@Pass1", entity.RoleRegular, 0, true)
	token := login(t, r, "custom01", "Right@Pass1")

	w := doJSON(r, http.MethodPost, "/users", token, gin.H{
		"utorid": "newuser1",
		"name":   "New User",
		"email":  "new@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterAndActivate(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "cashier1", "Right@Pass1", entity.RoleCashier, 0, true)
	token := login(t, r, "cashier1", "Right@Pass1")

	w := doJSON(r, http.MethodPost, "/users", token, gin.H{
		"utorid": "newuser1",
		"name":   "New User",
		"email":  "new.user@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resetToken, ok := decode(t, w)["resetToken"].(string)
	require.True(t, ok)
	require.NotEmpty(t, resetToken)

	w = doJSON(r, http.MethodPost, "/auth/resets/"+resetToken, "", gin.H{
		"utorid":   "newuser1",
		"password": "Fresh@Pass1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	login(t, r, "newuser1", "Fresh@Pass1")
}

func TestResetTokenOwnerMismatch(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "cashier1", "Right@Pass1", entity.RoleCashier, 0, true)
	seedUser(t, db, "other001", "Right@Pass1", entity.RoleRegular, 0, true)
	token := login(t, r, "cashier1", "Right@Pass1")

	w := doJSON(r, http.MethodPost, "/users", token, gin.H{
		"utorid": "newuser1",
		"name":   "New User",
		"email":  "new.user@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resetToken := decode(t, w)["resetToken"].(string)

	w = doJSON(r, http.MethodPost, "/auth/resets/"+resetToken, "", gin.H{
		"utorid":   "other001",
		"password": "Fresh@Pass1",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/resets/no-such-token", "", gin.H{
		"utorid":   "newuser1",
		"password": "Fresh@Pass1",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetRequestRateLimit(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "custom01", "Right@Pass1", entity.RoleRegular, 0, true)

	w := doJSON(r, http.MethodPost, "/auth/resets", "", gin.H{"utorid": "custom01"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/resets", "", gin.H{"utorid": "custom01"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestPurchaseEndpoint(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "cashier1", "Right@Pass1", entity.RoleCashier, 0, true)
	customer := seedUser(t, db, "custom01", "Right@Pass1", entity.RoleRegular, 0, true)
	token := login(t, r, "cashier1", "Right@Pass1")

	w := doJSON(r, http.MethodPost, "/transactions", token, gin.H{
		"utorid": "custom01",
		"type":   "purchase",
		"spent":  19.99,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, float64(80), body["earned"])
	require.Equal(t, "cashier1", body["createdBy"])

	var reloaded entity.User
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	require.Equal(t, 80, reloaded.Points)
}

func TestRedemptionEndpoints(t *testing.T) {
	r, db := setupServer(t)
	seedUser(t, db, "cashier1", "Right@Pass1", entity.RoleCashier, 0, true)
	seedUser(t, db, "custom01", "Right@Pass1", entity.RoleRegular, 100, true)
	userToken := login(t, r, "custom01", "Right@Pass1")
	cashierToken := login(t, r, "cashier1", "Right@Pass1")

	w := doJSON(r, http.MethodPost, "/users/me/transactions", userToken, gin.H{
		"type":   "redemption",
		"amount": 40,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	txnID := decode(t, w)["id"].(float64)

	path := fmt.Sprintf("/transactions/%d/processed", int(txnID))
	w = doJSON(r, http.MethodPatch, path, cashierToken, gin.H{"processed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, float64(40), decode(t, w)["redeemed"])

	w = doJSON(r, http.MethodPatch, path, cashierToken, gin.H{"processed": true})
	require.Equal(t, http.StatusConflict, w.Code)
}

// Published events are readable without a token; drafts stay hidden and
// the anonymous view never includes the privileged fields.
func TestEventDetailAnonymous(t *testing.T) {
	r, db := setupServer(t)

	published := entity.Event{
		Name:         "Open House",
		Description:  "test",
		Location:     "BA 1200",
		StartTime:    time.Now().Add(time.Hour),
		EndTime:      time.Now().Add(2 * time.Hour),
		PointsRemain: 100,
		Published:    true,
	}
	require.NoError(t, db.Create(&published).Error)
	draft := entity.Event{
		Name:      "Draft",
		Location:  "BA 1200",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, db.Create(&draft).Error)

	w := doJSON(r, http.MethodGet, fmt.Sprintf("/events/%d", published.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, "Open House", body["name"])
	require.NotContains(t, body, "guests")
	require.NotContains(t, body, "pointsRemain")

	w = doJSON(r, http.MethodGet, fmt.Sprintf("/events/%d", draft.ID), "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventOrganizerAccess(t *testing.T) {
	r, db := setupServer(t)
	organizer := seedUser(t, db, "organiz1", "Right@Pass1", entity.RoleRegular, 0, true)
	seedUser(t, db, "outside1", "Right@Pass1", entity.RoleRegular, 0, true)

	event := entity.Event{
		Name:         "Hack Night",
		Description:  "test",
		Location:     "BA 1200",
		StartTime:    time.Now().Add(time.Hour),
		EndTime:      time.Now().Add(2 * time.Hour),
		PointsRemain: 100,
		Published:    true,
	}
	require.NoError(t, db.Create(&event).Error)
	require.NoError(t, db.Create(&entity.EventOrganizer{EventID: event.ID, UserID: organizer.ID}).Error)

	path := fmt.Sprintf("/events/%d", event.ID)
	orgToken := login(t, r, "organiz1", "Right@Pass1")
	outToken := login(t, r, "outside1", "Right@Pass1")

	w := doJSON(r, http.MethodPatch, path, outToken, gin.H{"name": "Renamed"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPatch, path, orgToken, gin.H{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Renamed", decode(t, w)["name"])

	// Organizers cannot touch the pool or publication state.
	w = doJSON(r, http.MethodPatch, path, orgToken, gin.H{"points": 500})
	require.Equal(t, http.StatusForbidden, w.Code)
}
