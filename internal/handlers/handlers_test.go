// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"codeberg.org/oliverandrich/go-account-confirm/internal/handlers"
	"codeberg.org/oliverandrich/go-account-confirm/internal/i18n"
	"codeberg.org/oliverandrich/go-account-confirm/internal/middleware"
	"codeberg.org/oliverandrich/go-account-confirm/internal/repository"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/confirmation"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/session"
	"codeberg.org/oliverandrich/go-account-confirm/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

func init() {
	_ = i18n.Init()
}

type testEnv struct {
	e     *echo.Echo
	repo  *repository.Repository
	clock *testutil.FixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	clock := &testutil.FixedClock{T: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo.SetClock(clock.Now)

	manager := confirmation.NewManager(repo, confirmation.WithClock(clock))
	svc := auth.NewService(repo, manager, &config.AuthConfig{
		RequireConfirmed:  true,
		MinPasswordLength: 12,
	})
	svc.SetHashCost(bcrypt.MinCost)

	sessions, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}, false)
	require.NoError(t, err)

	e := echo.New()
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler
	e.Use(middleware.Locale)
	handlers.New(svc, sessions).Routes(e)

	return &testEnv{e: e, repo: repo, clock: clock}
}

func (env *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = testutil.NewRequest(method, path, nil)
	} else {
		req = testutil.NewRequest(method, path, testutil.JSONBody(body))
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type tokenBody struct {
	User struct {
		ID     int64  `json:"id"`
		Email  string `json:"email"`
		Status string `json:"status"`
	} `json:"user"`
	Token     string    `json:"confirmation_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field"`
	Codes   []string `json:"codes"`
	Details []string `json:"details"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (env *testEnv) register(t *testing.T, email string) tokenBody {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/users", `{"email":"`+email+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tokenBody](t, rec)
}

func TestHealth(t *testing.T) {
	h := handlers.New(nil, nil)

	e := echo.New()
	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/health", nil)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	body := env.register(t, " A@B.com ")

	assert.NotZero(t, body.User.ID)
	assert.Equal(t, "a@b.com", body.User.Email)
	assert.Equal(t, "unconfirmed", body.User.Status)
	assert.Len(t, body.Token, 20)
	assert.True(t, body.ExpiresAt.Equal(env.clock.T.Add(confirmation.TokenTTL)))
}

func TestRegister_ResponseHidesSecrets(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com")

	rec := env.do(t, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "confirmation_token")
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
		code   string
	}{
		{"malformed json", `{"email":`, http.StatusBadRequest, "", ""},
		{"missing email", `{"password":"` + testPassword + `"}`, http.StatusBadRequest, "", ""},
		{"missing at sign", `{"email":"nobody","password":"` + testPassword + `"}`, http.StatusUnprocessableEntity, "email", "email_invalid"},
		{"blank after normalization", `{"email":"   ","password":"` + testPassword + `"}`, http.StatusUnprocessableEntity, "email", "email_blank"},
		{"short password", `{"email":"a@b.com","password":"short"}`, http.StatusUnprocessableEntity, "password", auth.CodeMinLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(t, http.MethodPost, "/users", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[errorBody](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.field, body.Field)
			if tt.code != "" {
				assert.Contains(t, body.Codes, tt.code)
			}
		})
	}
}

func TestRegister_PasswordErrorIsLocalized(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewRequest(http.MethodPost, "/users", testutil.JSONBody(`{"email":"a@b.com","password":"1234"}`))
	req.Header.Set("Accept-Language", "de")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, []string{auth.CodeMinLength, auth.CodeEntirelyNumeric}, body.Codes)
	require.Len(t, body.Details, 2)
	assert.Contains(t, body.Details[0], "12")
	assert.Equal(t, body.Details[0], body.Error)
}

func TestRegister_DuplicateVariants(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com")

	for _, email := range []string{"a@b.com", "A@B.COM", " a@b.com"} {
		t.Run(email, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/users", `{"email":"`+email+`","password":"`+testPassword+`"}`)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, []string{"email_taken"}, body.Codes)
		})
	}

	count, err := env.repo.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com")

	rec := env.do(t, http.MethodPost, "/users/confirm", `{"email":"A@B.com","token":"`+reg.Token+`"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	stored, err := env.repo.GetUserByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, stored.ConfirmationToken)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, stored.ConfirmedAt.Equal(env.clock.T))
}

func TestConfirm_Errors(t *testing.T) {
	t.Run("wrong token", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "a@b.com")

		rec := env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com","token":"00000000000000000000"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []string{"invalid_token"}, decode[errorBody](t, rec).Codes)
	})

	t.Run("unknown email", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/users/confirm", `{"email":"x@y.com","token":"00000000000000000000"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t)
		reg := env.register(t, "a@b.com")
		env.clock.Advance(31 * 24 * time.Hour)

		rec := env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com","token":"`+reg.Token+`"}`)

		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, []string{"token_expired"}, decode[errorBody](t, rec).Codes)
	})

	t.Run("twice", func(t *testing.T) {
		env := newTestEnv(t)
		reg := env.register(t, "a@b.com")
		body := `{"email":"a@b.com","token":"` + reg.Token + `"}`

		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/users/confirm", body).Code)
		rec := env.do(t, http.MethodPost, "/users/confirm", body)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{"already_confirmed"}, decode[errorBody](t, rec).Codes)
	})

	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[errorBody](t, rec).Error, "token is required")
	})
}

func TestResendConfirmation(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com")
	env.clock.Advance(31 * 24 * time.Hour)

	rec := env.do(t, http.MethodPost, "/users/confirm/resend", `{"email":"a@b.com","password":"`+testPassword+`"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resent := decode[tokenBody](t, rec)
	assert.Len(t, resent.Token, 20)
	assert.NotEqual(t, reg.Token, resent.Token)
	assert.True(t, resent.ExpiresAt.Equal(env.clock.T.Add(confirmation.TokenTTL)))

	confirm := env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com","token":"`+resent.Token+`"}`)
	assert.Equal(t, http.StatusOK, confirm.Code)
}

func TestResendConfirmation_NeedsAccountPassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "owner@example.com")
	env.clock.Advance(31 * 24 * time.Hour)

	t.Run("email only", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/confirm/resend", `{"email":"owner@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotContains(t, rec.Body.String(), "confirmation_token")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/confirm/resend", `{"email":"owner@example.com","password":"not the password"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, []string{"invalid_credentials"}, decode[errorBody](t, rec).Codes)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/confirm/resend", `{"email":"x@y.com","password":"`+testPassword+`"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	stored, err := env.repo.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ConfirmationToken)
	assert.Equal(t, reg.Token, *stored.ConfirmationToken)
	assert.Nil(t, stored.ConfirmedAt)
}

func TestResendConfirmation_TokenStillValid(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com")

	rec := env.do(t, http.MethodPost, "/users/confirm/resend", `{"email":"a@b.com","password":"`+testPassword+`"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"token_still_valid"}, decode[errorBody](t, rec).Codes)

	confirm := env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com","token":"`+reg.Token+`"}`)
	assert.Equal(t, http.StatusOK, confirm.Code)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	env.register(t, "first@example.com")
	env.clock.Advance(time.Minute)
	env.register(t, "second@example.com")

	rec = env.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var users []struct {
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "second@example.com", users[0].Email)
	assert.True(t, users[0].CreatedAt.Equal(env.clock.T))
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com")
	login := `{"email":"a@b.com","password":"` + testPassword + `"}`

	rec := env.do(t, http.MethodPost, "/users/login", login)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"not_confirmed"}, decode[errorBody](t, rec).Codes)

	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/users/confirm", `{"email":"a@b.com","token":"`+reg.Token+`"}`).Code)

	rec = env.do(t, http.MethodPost, "/users/login", login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	me := env.do(t, http.MethodGet, "/users/me", "", cookies[0])
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"a@b.com"`)

	logout := env.do(t, http.MethodPost, "/users/logout", "", cookies[0])
	require.Equal(t, http.StatusOK, logout.Code)
	cleared := logout.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com")

	for _, body := range []string{
		`{"email":"a@b.com","password":"wrong password here"}`,
		`{"email":"nobody@b.com","password":"` + testPassword + `"}`,
	} {
		rec := env.do(t, http.MethodPost, "/users/login", body)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, []string{"invalid_credentials"}, decode[errorBody](t, rec).Codes)
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/me", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Error)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("Accept-Language", "de")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Nicht gefunden.", decode[errorBody](t, rec).Error)
}
