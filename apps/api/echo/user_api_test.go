package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/RidhwanAhamed/aqademiq-sync/apps/api/echo"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

func Test_userApi_register(t *testing.T) {
	t.Run("valid registration", func(t *testing.T) {
		body := []byte(`{"name":"Awa","email":"Awa@Test.CD","timezone":"Europe/Vienna","password":"pwd","password_confirm":"pwd"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusCreated)

		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if usr.Email != "awa@test.cd" {
			t.Errorf("Email = %q, want lowercased", usr.Email)
		}
		if usr.Timezone != "Europe/Vienna" || !usr.IsActive {
			t.Errorf("user = %+v", usr)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := []byte(`{"name":"Awa","email":"awa@test.cd","password":"pwd","password_confirm":"pwd"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		body := []byte(`{"name":"Awa","email":"awa2@test.cd","timezone":"Vienna/Europe","password":"pwd","password_confirm":"pwd"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("password mismatch", func(t *testing.T) {
		body := []byte(`{"name":"Awa","email":"awa3@test.cd","password":"pwd","password_confirm":"dwp"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusBadRequest)
	})
}

func Test_userApi_login(t *testing.T) {
	usr := createUser(t, "Login", "login@test.cd", "s3cret", "UTC")

	t.Run("valid credentials", func(t *testing.T) {
		body := []byte(`{"email":"Login@Test.CD","password":"s3cret"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusOK)

		var resp echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if resp.Token == "" {
			t.Error("empty token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		body := []byte(`{"email":"login@test.cd","password":"nope"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, rec, http.StatusBadRequest, marshalObj(t, httpErr{Error: "authentication failed"}))
	})

	t.Run("unknown email", func(t *testing.T) {
		body := []byte(`{"email":"ghost@test.cd","password":"nope"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, rec, http.StatusBadRequest, marshalObj(t, httpErr{Error: "authentication failed"}))
	})

	t.Run("me returns the caller", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, usr))
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusOK)

		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if got.ID != usr.ID || got.Email != usr.Email {
			t.Errorf("me = %+v, want %+v", got, usr)
		}
	})

	t.Run("me requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, rec, http.StatusUnauthorized, marshalObj(t, errMissingToken))
	})
}

func Test_userApi_updateProfile(t *testing.T) {
	usr := createUser(t, "Prof", "prof@test.cd", "pwd", "UTC")
	token := getToken(t, usr)

	t.Run("update name and timezone", func(t *testing.T) {
		body := []byte(`{"name":"Professor","timezone":"Africa/Kinshasa"}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusOK)

		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if got.Name != "Professor" || got.Timezone != "Africa/Kinshasa" {
			t.Errorf("user = %+v", got)
		}
	})

	t.Run("invalid timezone", func(t *testing.T) {
		body := []byte(`{"timezone":"Mars/Olympus"}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		app.ServeHTTP(rec, req)
		checkCode(t, rec, http.StatusBadRequest)
	})
}
