package users

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/testutil"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/users"
	"tourbook/internal/utils/paging"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MockUsersService mocks the users service
type MockUsersService struct {
	mock.Mock
}

func (m *MockUsersService) user(args mock.Arguments) (*auth.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsersService) List(ctx context.Context, p paging.Params) ([]*auth.User, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auth.User), args.Error(1)
}

func (m *MockUsersService) Get(ctx context.Context, id bson.ObjectID) (*auth.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUsersService) UpdateMe(ctx context.Context, id bson.ObjectID, req users.UpdateMeRequest) (*auth.User, error) {
	return m.user(m.Called(ctx, id, req))
}

func (m *MockUsersService) DeleteMe(ctx context.Context, id bson.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUsersService) Update(ctx context.Context, id bson.ObjectID, req users.UpdateUserRequest) (*auth.User, error) {
	return m.user(m.Called(ctx, id, req))
}

func (m *MockUsersService) Delete(ctx context.Context, id bson.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

type usersTestSetup struct {
	svc  *MockUsersService
	app  *fiber.App
	user *auth.User
}

func setupUsersTest(t *testing.T) *usersTestSetup {
	t.Helper()

	svc := &MockUsersService{}
	app := testutil.CreateTestApp(t)
	h := NewHandlers(svc, testutil.CreateTestValidator(t))

	user := &auth.User{
		ID:        bson.NewObjectID(),
		Name:      "Laura Wilson",
		Email:     "laura@example.com",
		Role:      auth.RoleUser,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	grp := app.Group("/api/v1/users", testutil.WithUser(user))
	grp.Get("/me", h.Me)
	grp.Patch("/updateMe", h.UpdateMe)
	grp.Delete("/deleteMe", h.DeleteMe)
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Get("/:id", h.Get)
	grp.Patch("/:id", h.Update)
	grp.Delete("/:id", h.Delete)

	return &usersTestSetup{svc: svc, app: app, user: user}
}

func ptr[T any](v T) *T { return &v }

func TestMe(t *testing.T) {
	s := setupUsersTest(t)
	s.svc.On("Get", mock.Anything, s.user.ID).Return(s.user, nil).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := testutil.DecodeJSON(t, resp)
	assert.Equal(t, "success", body["status"])
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, s.user.Email, user["email"])
	assert.NotContains(t, user, "active")
}

func TestUpdateMe(t *testing.T) {
	s := setupUsersTest(t)

	req := users.UpdateMeRequest{Name: ptr("Laura W")}
	updated := *s.user
	updated.Name = "Laura W"
	s.svc.On("UpdateMe", mock.Anything, s.user.ID, req).Return(&updated, nil).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodPatch, "/api/v1/users/updateMe", req))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := testutil.DecodeJSON(t, resp)
	assert.Equal(t, "Laura W", body["data"].(map[string]any)["user"].(map[string]any)["name"])
	s.svc.AssertExpectations(t)
}

// multipartBody encodes fields as a multipart form.
func multipartBody(t *testing.T, fields map[string]string) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf.String(), w.FormDataContentType()
}

func TestUpdateMeRejectsForbiddenFields(t *testing.T) {
	const (
		passwordMsg = "This route is not for password updates. Please use /updatePassword."
		roleMsg     = "You can not change your role."
	)
	multiRole, multiCT := multipartBody(t, map[string]string{"name": "Mallory", "role": "admin"})

	tests := []struct {
		name       string
		ctype      string
		body       string
		wantStatus int
		msg        string
	}{
		{"password", fiber.MIMEApplicationJSON, `{"password":"newpass123"}`, http.StatusBadRequest, passwordMsg},
		{"password confirm", fiber.MIMEApplicationJSON, `{"name":"x","passwordConfirm":"newpass123"}`, http.StatusBadRequest, passwordMsg},
		{"role", fiber.MIMEApplicationJSON, `{"role":"admin"}`, http.StatusBadRequest, roleMsg},
		{"role other casing", fiber.MIMEApplicationJSON, `{"name":"Mallory","Role":"admin"}`, http.StatusBadRequest, roleMsg},
		{"password upper casing", fiber.MIMEApplicationJSONCharsetUTF8, `{"name":"Mallory","PASSWORD":"newpass123"}`, http.StatusBadRequest, passwordMsg},
		{"form role", fiber.MIMEApplicationForm, "name=Mallory&role=admin", http.StatusBadRequest, roleMsg},
		{"form password", fiber.MIMEApplicationForm, "name=Mallory&password=newpass123", http.StatusBadRequest, passwordMsg},
		{"form indexed role", fiber.MIMEApplicationForm, "name=Mallory&Role[0]=admin", http.StatusBadRequest, roleMsg},
		{"multipart role", multiCT, multiRole, http.StatusBadRequest, roleMsg},
		{"xml body", fiber.MIMEApplicationXML, "<user><name>Mallory</name><role>admin</role></user>", http.StatusUnsupportedMediaType,
			"Request body must be JSON, form or multipart encoded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupUsersTest(t)

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/updateMe", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, tt.ctype)
			resp, err := s.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := testutil.DecodeJSON(t, resp)
			assert.Equal(t, tt.msg, body["message"])
			s.svc.AssertNotCalled(t, "UpdateMe", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateMeAcceptsFormBody(t *testing.T) {
	s := setupUsersTest(t)
	name := "Mallory"
	s.svc.On("UpdateMe", mock.Anything, s.user.ID, users.UpdateMeRequest{Name: &name}).
		Return(&auth.User{ID: s.user.ID, Name: name}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/updateMe", strings.NewReader("name=Mallory"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	s.svc.AssertExpectations(t)
}

func TestUpdateMeErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        users.UpdateMeRequest
		serviceErr error
		wantStatus int
		wantMsg    string
	}{
		{"empty", users.UpdateMeRequest{}, users.ErrEmptyUpdate, http.StatusBadRequest, "No fields to update"},
		{"email taken", users.UpdateMeRequest{Email: ptr("taken@example.com")}, auth.ErrDuplicate, http.StatusBadRequest,
			`Duplicate field value: "taken@example.com". Please use another value!`},
		{"store down", users.UpdateMeRequest{Name: ptr("x")}, errors.New("boom"), http.StatusInternalServerError, "Something went Very Wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupUsersTest(t)
			s.svc.On("UpdateMe", mock.Anything, s.user.ID, tt.req).Return(nil, tt.serviceErr).Once()

			resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodPatch, "/api/v1/users/updateMe", tt.req))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := testutil.DecodeJSON(t, resp)
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestDeleteMe(t *testing.T) {
	s := setupUsersTest(t)
	s.svc.On("DeleteMe", mock.Anything, s.user.ID).Return(nil).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodDelete, "/api/v1/users/deleteMe", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cookie := testutil.FindCookie(resp, handlerutil.CookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "loggedout", cookie.Value)
}

func TestListUsers(t *testing.T) {
	s := setupUsersTest(t)
	s.svc.On("List", mock.Anything, paging.Params{Page: 2, Limit: 5}).Return([]*auth.User{s.user}, nil).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users?page=2&limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := testutil.DecodeJSON(t, resp)
	assert.EqualValues(t, 1, body["results"])
	assert.Len(t, body["data"].(map[string]any)["users"], 1)

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users?limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUser(t *testing.T) {
	s := setupUsersTest(t)
	missing := bson.NewObjectID()
	s.svc.On("Get", mock.Anything, s.user.ID).Return(s.user, nil).Once()
	s.svc.On("Get", mock.Anything, missing).Return(nil, auth.ErrUserNotFound).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users/"+s.user.ID.Hex(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users/"+missing.Hex(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No user found with that ID", testutil.DecodeJSON(t, resp)["message"])

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodGet, "/api/v1/users/not-an-id", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid id", testutil.DecodeJSON(t, resp)["message"])
}

func TestCreateUserIsRefused(t *testing.T) {
	s := setupUsersTest(t)

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users", `{"email":"a@b.c"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "This route is not defined! Please use /signup instead", testutil.DecodeJSON(t, resp)["message"])
}

func TestUpdateUser(t *testing.T) {
	s := setupUsersTest(t)
	target := bson.NewObjectID()

	role := auth.RoleGuide
	req := users.UpdateUserRequest{Role: &role}
	s.svc.On("Update", mock.Anything, target, req).Return(&auth.User{ID: target, Role: role}, nil).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodPatch, "/api/v1/users/"+target.Hex(), req))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "guide", testutil.DecodeJSON(t, resp)["data"].(map[string]any)["user"].(map[string]any)["role"])

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodPatch, "/api/v1/users/"+target.Hex(), `{"role":"emperor"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodPatch, "/api/v1/users/"+target.Hex(), `{"password":"newpass123"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.svc.AssertNumberOfCalls(t, "Update", 1)
}

func TestDeleteUser(t *testing.T) {
	s := setupUsersTest(t)
	target := bson.NewObjectID()
	s.svc.On("Delete", mock.Anything, target).Return(nil).Once()
	s.svc.On("Delete", mock.Anything, target).Return(auth.ErrUserNotFound).Once()

	resp, err := s.app.Test(testutil.CreateJSONRequest(http.MethodDelete, "/api/v1/users/"+target.Hex(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = s.app.Test(testutil.CreateJSONRequest(http.MethodDelete, "/api/v1/users/"+target.Hex(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
