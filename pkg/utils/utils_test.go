package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" binding:"required,min=3,max=50,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

func bindSignup(body string) (*httptest.ResponseRecorder, error) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req signup
	err := c.ShouldBindJSON(&req)
	if err != nil {
		SendValidationError(c, err)
	}
	return w, err
}

func TestValidation_AcceptsValidBody(t *testing.T) {
	_, err := bindSignup(`{"username":"ash_k-99","email":"ash@pallet.town","password":"pikachu123"}`)
	assert.NoError(t, err)
}

func TestValidation_Details(t *testing.T) {
	w, err := bindSignup(`{"username":"a!","email":"nope","password":"short"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation failed", body.Error)

	byField := map[string]FieldError{}
	for _, d := range body.Details {
		byField[d.Field] = d
	}
	assert.Contains(t, byField, "username")
	assert.Contains(t, byField, "email")
	assert.Equal(t, "Invalid email format", byField["email"].Message)
	require.Contains(t, byField, "password")
	assert.Nil(t, byField["password"].Value, "password values are never echoed")
}

func TestValidation_UsernameCharset(t *testing.T) {
	_, err := bindSignup(`{"username":"ash ketchum","email":"ash@pallet.town","password":"pikachu123"}`)
	assert.Error(t, err)
	assert.True(t, IsValidUsername("Red_01"))
	assert.False(t, IsValidUsername("red@kanto"))
}

func TestValidation_RejectsUnknownFields(t *testing.T) {
	w, err := bindSignup(`{"username":"ash","email":"ash@pallet.town","password":"pikachu123","role":"admin"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "body")
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("5a1f1c8e-8a57-4d43-9b4c-8f0c0a9c1a11"))
	assert.False(t, IsValidUUID("42"))
	assert.False(t, IsValidUUID(""))
}

func TestResponses(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SendMessageResponse(c, http.StatusOK, "Logged out")
	assert.JSONEq(t, `{"message":"Logged out"}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	SendErrorResponse(c, http.StatusUnauthorized, "Missing Bearer token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing Bearer token"}`, w.Body.String())
}

func TestAbortWithError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	cause := errors.New("db down")

	AbortWithError(c, 0, "Internal Server Error", cause)

	assert.True(t, c.IsAborted())
	assert.False(t, c.Writer.Written())
	require.Len(t, c.Errors, 1)

	var httpErr *HTTPError
	require.True(t, errors.As(c.Errors.Last().Err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.ErrorIs(t, httpErr, cause)
}
