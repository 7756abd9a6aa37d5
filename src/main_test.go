package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"vetap/src/config"
	"vetap/src/db"
	"vetap/src/models"
	"vetap/src/types"
	"vetap/src/verifier"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

type TestSuite struct {
	suite.Suite
	DB    *gorm.DB
	Token *string
}

func generateJWT(role string, eventId uint, gateId uint) (string, error) {
	claims := types.Claims{
		Role:    role,
		EventID: eventId,
		GateID:  gateId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-device",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

func (s *TestSuite) SetupSuite() {
	os.Setenv("API_QRC_SECRET", strings.Repeat("a1", 32))

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", eventDateTimeValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
	}

	verifier.ValidSignal = func(payload map[string]any) error { return nil }
	verifier.InvalidSignal = func(payload map[string]any) error { return nil }

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path.Join(s.T().TempDir(), "api.db"))
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("error opening test database: %s", err.Error())
	}
	if err := d.AutoMigrate(
		&models.Event{},
		&models.Gate{},
		&models.Guest{},
		&models.Pass{},
		&models.ScanLog{},
	); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	db.NewDB(d)
	s.DB = d

	token, err := generateJWT("organizer", 0, 0)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
		return
	}
	s.Token = &token
}

func (s *TestSuite) organizerRequest(router *gin.Engine, method, url string, body map[string]any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		sbody, _ := json.Marshal(&body)
		reader = strings.NewReader(string(sbody))
	} else {
		reader = strings.NewReader("")
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+*s.Token)
	router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestUnauthorizedWithoutToken() {
	router := setupRouter()
	organizerRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/events", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestGateRoleCannotManageEvents() {
	router := setupRouter()
	organizerRoutes(router)

	gateToken, err := generateJWT("gate", 1, 1)
	assert.Nil(s.T(), err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestCheckInFlow() {
	router := setupRouter()
	organizerRoutes(router)
	gateRoutes(router)

	w := s.organizerRequest(router, "POST", "/api/v1/events", map[string]any{
		"name":      "Launch Party",
		"starts_at": time.Now().Add(10 * time.Minute).Format(config.TIME_PARSE_FORMAT),
		"ends_at":   time.Now().Add(5 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		"zones":     []string{"VIP", "General"},
		"publish":   true,
	})
	assert.Equal(s.T(), 201, w.Code)
	eventId := gjson.Get(w.Body.String(), "id").Uint()
	assert.Greater(s.T(), eventId, uint64(0))

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/gates", eventId), map[string]any{
		"name": "Main Entrance",
	})
	assert.Equal(s.T(), 201, w.Code)
	gateId := gjson.Get(w.Body.String(), "data.id").Uint()
	assert.Greater(s.T(), gateId, uint64(0))

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/guests", eventId), map[string]any{
		"full_name": "Ada Lovelace",
		"type":      "VIP",
	})
	assert.Equal(s.T(), 201, w.Code)
	guestId := gjson.Get(w.Body.String(), "data.id").Uint()
	assert.Greater(s.T(), guestId, uint64(0))

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/guests/%d/pass", guestId), map[string]any{})
	assert.Equal(s.T(), 201, w.Code)
	payload := gjson.Get(w.Body.String(), "payload").String()
	assert.True(s.T(), strings.HasPrefix(payload, "VETAP:"))

	gateToken, err := generateJWT("gate", uint(eventId), uint(gateId))
	assert.Nil(s.T(), err)

	verifyBody, _ := json.Marshal(map[string]any{
		"qr_raw_value": payload,
		"event_id":     eventId,
	})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "valid", gjson.Get(w.Body.String(), "result").String())
	assert.Equal(s.T(), "Ada Lovelace", gjson.Get(w.Body.String(), "guest.full_name").String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "already_used", gjson.Get(w.Body.String(), "result").String())

	w = s.organizerRequest(router, "GET", fmt.Sprintf("/api/v1/events/%d/scans", eventId), nil)
	assert.Equal(s.T(), 200, w.Code)
	scans := gjson.Get(w.Body.String(), "data").Array()
	assert.Len(s.T(), scans, 2)
}

func (s *TestSuite) TestRevokedPassRejectedAtGate() {
	router := setupRouter()
	organizerRoutes(router)
	gateRoutes(router)

	w := s.organizerRequest(router, "POST", "/api/v1/events", map[string]any{
		"name":      "Members Night",
		"starts_at": time.Now().Add(10 * time.Minute).Format(config.TIME_PARSE_FORMAT),
		"ends_at":   time.Now().Add(3 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		"publish":   true,
	})
	assert.Equal(s.T(), 201, w.Code)
	eventId := gjson.Get(w.Body.String(), "id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/guests", eventId), map[string]any{
		"full_name": "Grace Hopper",
	})
	assert.Equal(s.T(), 201, w.Code)
	guestId := gjson.Get(w.Body.String(), "data.id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/guests/%d/pass", guestId), map[string]any{})
	assert.Equal(s.T(), 201, w.Code)
	payload := gjson.Get(w.Body.String(), "payload").String()
	passId := gjson.Get(w.Body.String(), "data.id").String()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/passes/%s/revoke", passId), nil)
	assert.Equal(s.T(), 200, w.Code)

	gateToken, err := generateJWT("gate", uint(eventId), 0)
	assert.Nil(s.T(), err)

	verifyBody, _ := json.Marshal(map[string]any{
		"qr_raw_value": payload,
		"event_id":     eventId,
	})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "revoked", gjson.Get(w.Body.String(), "result").String())
}

func (s *TestSuite) TestReissueRevokesPriorPass() {
	router := setupRouter()
	organizerRoutes(router)
	gateRoutes(router)

	w := s.organizerRequest(router, "POST", "/api/v1/events", map[string]any{
		"name":      "Encore Night",
		"starts_at": time.Now().Add(10 * time.Minute).Format(config.TIME_PARSE_FORMAT),
		"ends_at":   time.Now().Add(4 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		"publish":   true,
	})
	assert.Equal(s.T(), 201, w.Code)
	eventId := gjson.Get(w.Body.String(), "id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/guests", eventId), map[string]any{
		"full_name": "Margaret Hamilton",
	})
	assert.Equal(s.T(), 201, w.Code)
	guestId := gjson.Get(w.Body.String(), "data.id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/guests/%d/pass", guestId), map[string]any{})
	assert.Equal(s.T(), 201, w.Code)
	firstPayload := gjson.Get(w.Body.String(), "payload").String()
	firstPassId := gjson.Get(w.Body.String(), "data.id").String()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/guests/%d/pass", guestId), map[string]any{})
	assert.Equal(s.T(), 201, w.Code)
	secondPayload := gjson.Get(w.Body.String(), "payload").String()

	// The guest holds one live pass at a time; issuing again kills the
	// previous one.
	var stored models.Pass
	err := s.DB.Where("id = ?", firstPassId).First(&stored).Error
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.PASS_REVOKED, stored.Status)

	gateToken, err := generateJWT("gate", uint(eventId), 0)
	assert.Nil(s.T(), err)

	verifyBody, _ := json.Marshal(map[string]any{
		"qr_raw_value": firstPayload,
		"event_id":     eventId,
	})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "revoked", gjson.Get(w.Body.String(), "result").String())

	verifyBody, _ = json.Marshal(map[string]any{
		"qr_raw_value": secondPayload,
		"event_id":     eventId,
	})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "valid", gjson.Get(w.Body.String(), "result").String())
}

func (s *TestSuite) TestEventUpdateRejectsInvertedWindow() {
	router := setupRouter()
	organizerRoutes(router)

	startsAt := time.Now().Add(time.Hour)
	w := s.organizerRequest(router, "POST", "/api/v1/events", map[string]any{
		"name":      "Schedule Shuffle",
		"starts_at": startsAt.Format(config.TIME_PARSE_FORMAT),
		"ends_at":   startsAt.Add(2 * time.Hour).Format(config.TIME_PARSE_FORMAT),
	})
	assert.Equal(s.T(), 201, w.Code)
	eventId := gjson.Get(w.Body.String(), "id").Uint()

	// Moving ends_at before the stored starts_at must be rejected even
	// though starts_at is not part of the request.
	w = s.organizerRequest(router, "PATCH", fmt.Sprintf("/api/v1/events/%d", eventId), map[string]any{
		"ends_at": startsAt.Add(-time.Hour).Format(config.TIME_PARSE_FORMAT),
	})
	assert.Equal(s.T(), 400, w.Code)

	var stored models.Event
	err := s.DB.Where(&models.Event{ID: uint(eventId)}).First(&stored).Error
	assert.Nil(s.T(), err)
	assert.True(s.T(), stored.EndsAt.After(stored.StartsAt))

	w = s.organizerRequest(router, "PATCH", fmt.Sprintf("/api/v1/events/%d", eventId), map[string]any{
		"ends_at": startsAt.Add(3 * time.Hour).Format(config.TIME_PARSE_FORMAT),
	})
	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestDraftEventRejectsScans() {
	router := setupRouter()
	organizerRoutes(router)
	gateRoutes(router)

	w := s.organizerRequest(router, "POST", "/api/v1/events", map[string]any{
		"name":      "Soft Open",
		"starts_at": time.Now().Add(10 * time.Minute).Format(config.TIME_PARSE_FORMAT),
		"ends_at":   time.Now().Add(2 * time.Hour).Format(config.TIME_PARSE_FORMAT),
	})
	assert.Equal(s.T(), 201, w.Code)
	eventId := gjson.Get(w.Body.String(), "id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/guests", eventId), map[string]any{
		"full_name": "Alan Turing",
	})
	assert.Equal(s.T(), 201, w.Code)
	guestId := gjson.Get(w.Body.String(), "data.id").Uint()

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/guests/%d/pass", guestId), map[string]any{})
	assert.Equal(s.T(), 201, w.Code)
	payload := gjson.Get(w.Body.String(), "payload").String()

	gateToken, err := generateJWT("gate", uint(eventId), 0)
	assert.Nil(s.T(), err)

	verifyBody, _ := json.Marshal(map[string]any{
		"qr_raw_value": payload,
		"event_id":     eventId,
	})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "expired", gjson.Get(w.Body.String(), "result").String())

	w = s.organizerRequest(router, "POST", fmt.Sprintf("/api/v1/events/%d/publish", eventId), nil)
	assert.Equal(s.T(), 200, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/checkin/verify", strings.NewReader(string(verifyBody)))
	req.Header.Set("Authorization", "Bearer "+gateToken)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "valid", gjson.Get(w.Body.String(), "result").String())
}

func TestSuiteRun(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
