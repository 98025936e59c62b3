package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/api/middleware"
	"bantay-backend/internal/models"
)

type MockAlertManager struct{ mock.Mock }

func (m *MockAlertManager) Create(ctx context.Context, content models.AlertContent, actor models.Actor) (*models.Alert, error) {
	args := m.Called(ctx, content, actor)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertManager) Update(ctx context.Context, ref string, content models.AlertContent, actor models.Actor) (*models.Alert, error) {
	args := m.Called(ctx, ref, content, actor)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertManager) Publish(ctx context.Context, ref string, actor models.Actor) (*models.PublishResult, error) {
	args := m.Called(ctx, ref, actor)
	result, _ := args.Get(0).(*models.PublishResult)
	return result, args.Error(1)
}

func (m *MockAlertManager) Extend(ctx context.Context, ref string, req models.ExtendAlertRequest, actor models.Actor) (*models.Alert, error) {
	args := m.Called(ctx, ref, req, actor)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertManager) Deactivate(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error) {
	args := m.Called(ctx, ref, reason, actor)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertManager) Cancel(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error) {
	args := m.Called(ctx, ref, reason, actor)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertManager) Get(ctx context.Context, ref string) (*models.AlertDetail, error) {
	args := m.Called(ctx, ref)
	detail, _ := args.Get(0).(*models.AlertDetail)
	return detail, args.Error(1)
}

func (m *MockAlertManager) List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error) {
	args := m.Called(ctx, filter)
	alerts, _ := args.Get(0).([]*models.Alert)
	return alerts, args.Get(1).(int64), args.Error(2)
}

func (m *MockAlertManager) ListActiveForArea(ctx context.Context, area string) ([]*models.Alert, error) {
	args := m.Called(ctx, area)
	alerts, _ := args.Get(0).([]*models.Alert)
	return alerts, args.Error(1)
}

func (m *MockAlertManager) ListWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.Alert, error) {
	args := m.Called(ctx, lon, lat, km)
	alerts, _ := args.Get(0).([]*models.Alert)
	return alerts, args.Error(1)
}

func (m *MockAlertManager) GetStatistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error) {
	args := m.Called(ctx, from, to)
	stats, _ := args.Get(0).(*models.AlertStatistics)
	return stats, args.Error(1)
}

type MockAcknowledger struct{ mock.Mock }

func (m *MockAcknowledger) Acknowledge(ctx context.Context, ref string, actor models.Actor, location *models.GeoPoint) (*models.Acknowledgment, bool, error) {
	args := m.Called(ctx, ref, actor, location)
	ack, _ := args.Get(0).(*models.Acknowledgment)
	return ack, args.Bool(1), args.Error(2)
}

type MockRescueManager struct{ mock.Mock }

func (m *MockRescueManager) Create(ctx context.Context, req models.CreateRescueRequest, actor models.Actor) (*models.RescueRequest, error) {
	args := m.Called(ctx, req, actor)
	r, _ := args.Get(0).(*models.RescueRequest)
	return r, args.Error(1)
}

func (m *MockRescueManager) UpdateStatus(ctx context.Context, ref string, req models.UpdateRescueStatusRequest, actor models.Actor) (*models.RescueRequest, error) {
	args := m.Called(ctx, ref, req, actor)
	r, _ := args.Get(0).(*models.RescueRequest)
	return r, args.Error(1)
}

func (m *MockRescueManager) AssignResponder(ctx context.Context, ref string, req models.AssignResponderRequest, actor models.Actor) (*models.RescueRequest, error) {
	args := m.Called(ctx, ref, req, actor)
	r, _ := args.Get(0).(*models.RescueRequest)
	return r, args.Error(1)
}

func (m *MockRescueManager) AddNote(ctx context.Context, ref string, req models.AddNoteRequest, actor models.Actor) (*models.RescueRequest, error) {
	args := m.Called(ctx, ref, req, actor)
	r, _ := args.Get(0).(*models.RescueRequest)
	return r, args.Error(1)
}

func (m *MockRescueManager) Get(ctx context.Context, ref string, actor models.Actor) (*models.RescueRequest, error) {
	args := m.Called(ctx, ref, actor)
	r, _ := args.Get(0).(*models.RescueRequest)
	return r, args.Error(1)
}

func (m *MockRescueManager) List(ctx context.Context, filter models.RescueFilter, actor models.Actor) ([]*models.RescueRequest, int64, error) {
	args := m.Called(ctx, filter, actor)
	items, _ := args.Get(0).([]*models.RescueRequest)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *MockRescueManager) FindWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.RescueRequest, error) {
	args := m.Called(ctx, lon, lat, km)
	items, _ := args.Get(0).([]*models.RescueRequest)
	return items, args.Error(1)
}

type MockAuthManager struct{ mock.Mock }

func (m *MockAuthManager) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*models.LoginResponse)
	return r, args.Error(1)
}

func (m *MockAuthManager) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*models.LoginResponse)
	return r, args.Error(1)
}

func (m *MockAuthManager) Refresh(ctx context.Context, userID primitive.ObjectID) (*models.LoginResponse, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.LoginResponse)
	return r, args.Error(1)
}

func (m *MockAuthManager) Profile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockAuthManager) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockAuthManager) ForgotPassword(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockAuthManager) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockAuthManager) ChangePassword(ctx context.Context, userID primitive.ObjectID, req models.ChangePasswordRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *MockAuthManager) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockAuthManager) ResendVerification(ctx context.Context, req models.ResendVerificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

type MockUserManager struct{ mock.Mock }

func (m *MockUserManager) List(ctx context.Context, filter models.UserFilter, actor models.Actor) ([]*models.User, int64, error) {
	args := m.Called(ctx, filter, actor)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *MockUserManager) Get(ctx context.Context, id primitive.ObjectID, actor models.Actor) (*models.User, error) {
	args := m.Called(ctx, id, actor)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserManager) Create(ctx context.Context, req models.CreateUserRequest, actor models.Actor) (*models.User, error) {
	args := m.Called(ctx, req, actor)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserManager) SetActive(ctx context.Context, id primitive.ObjectID, active bool, actor models.Actor) error {
	return m.Called(ctx, id, active, actor).Error(0)
}

// testRouter returns an engine whose requests run as actor.
func testRouter(actor *models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if actor != nil {
		a := *actor
		router.Use(func(c *gin.Context) {
			middleware.SetActor(c, a)
			c.Next()
		})
	}
	return router
}

func performJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Error, &body))
	return body.Code
}

func actorOf(role string) *models.Actor {
	return &models.Actor{UserID: primitive.NewObjectID(), Role: role}
}
