package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/apps/api/echo"
	"github.com/slotwise/slotwise/core"
	testutil "github.com/slotwise/slotwise/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	pwd := "Passw0rd!"
	_ = testutil.CreateUser(t, app.usrRepo, "admin", pwd, true, true)
	_ = testutil.CreateUser(t, app.usrRepo, "ndog", pwd, false, false)

	invalidCreds := marchallObj(t, httpErr{Detail: "Invalid credentials"})

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Detail: "password: this field is required; username: this field is required",
				Fields: map[string]string{"username": "this field is required", "password": "this field is required"},
			}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "ghost", "password": "Passw0rd!"}`),
			wantCode: http.StatusUnauthorized,
			wantData: invalidCreds,
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "admin", "password": "nope"}`),
			wantCode: http.StatusUnauthorized,
			wantData: invalidCreds,
		},
		{
			name:     "inactive user",
			body:     []byte(`{"username": "ndog", "password": "Passw0rd!"}`),
			wantCode: http.StatusUnauthorized,
			wantData: invalidCreds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/login", []byte(`{"username": " admin ", "password": "Passw0rd!"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "Login successful", resp.Message)
		assert.Equal(t, "admin", resp.Username)
		assert.NotEmpty(t, resp.Token)

		usr, err := app.usrRepo.GetUserByUsername(req.Context(), "admin")
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_changePassword(t *testing.T) {
	app := setup(t)
	_ = testutil.CreateUser(t, app.usrRepo, "admin", "Passw0rd!", true, true)

	tests := []httpTest{
		{
			name:     "weak password",
			body:     []byte(`{"username": "admin", "oldPassword": "Passw0rd!", "newPassword": "short"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Detail: "newPassword: Password must be at least 8 characters long",
				Fields: map[string]string{"newPassword": "Password must be at least 8 characters long"},
			}),
		},
		{
			name:     "no special character",
			body:     []byte(`{"username": "admin", "oldPassword": "Passw0rd!", "newPassword": "Passw0rdd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Detail: "newPassword: Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
				Fields: map[string]string{"newPassword": "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"},
			}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "ghost", "oldPassword": "Passw0rd!", "newPassword": "N3w&Secure"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Detail: "User not found"}),
		},
		{
			name:     "wrong current password",
			body:     []byte(`{"username": "admin", "oldPassword": "wrong", "newPassword": "N3w&Secure"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Detail: "Current password is incorrect"}),
		},
		{
			name:     "success with spaces and other symbols",
			body:     []byte(`{"username": "admin", "oldPassword": "Passw0rd!", "newPassword": "N3w #Secure!"}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.MessageResponse{Success: true, Message: "Password updated successfully"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/change-password", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("login with the new password", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/login", []byte(`{"username": "admin", "password": "N3w #Secure!"}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "admin", "Passw0rd!", true, true)
	naughty := testutil.CreateUser(t, app.usrRepo, "ndog", "Passw0rd!", false, false)

	tests := []httpTest{
		{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Detail: "missing or malformed jwt"}),
		},
		{
			name:     "inactive user",
			token:    getToken(t, app.conf, naughty),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Detail: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/token-refresh", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/token-refresh", getToken(t, app.conf, usr))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.TokenResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("refresh expired", func(t *testing.T) {
		expired := setup(t, func(conf *core.Config) {
			conf.Server.JWTRefreshExpirationDelta = -time.Minute
		})
		usr := testutil.CreateUser(t, expired.usrRepo, "admin", "Passw0rd!", true, true)

		req, rec := newAuthRequest(http.MethodPost, "/api/token-refresh", getToken(t, expired.conf, usr))
		expired.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Detail: "refresh has expired"}),
		}, rec)
	})
}

func Test_authRequired(t *testing.T) {
	app := setup(t, func(conf *core.Config) {
		conf.Server.AuthRequired = true
	})
	usr := testutil.CreateUser(t, app.usrRepo, "admin", "Passw0rd!", true, true)

	req, rec := newRequest(http.MethodGet, "/api/schemas")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/schemas", getToken(t, app.conf, usr))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"success": true, "schemas": []}`),
	}, rec)
}
