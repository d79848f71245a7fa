package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/store"
)

var testArgon2 = config.Argon2Config{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16}

func newTestAuthService(t *testing.T) (*AuthService, store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewAuthService(st, nil, config.JWTConfig{SecretKey: "test-secret", Expiry: 24 * time.Hour}, testArgon2), st
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestAuthService_Setup(t *testing.T) {
	service, _ := newTestAuthService(t)

	t.Run("short password", func(t *testing.T) {
		w := postJSON(t, service.Setup, "/admin/setup", LoginRequest{Username: "admin", Password: "123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Password is required and must be at least 6 characters", response.Message)
	})

	t.Run("first admin", func(t *testing.T) {
		w := postJSON(t, service.Setup, "/admin/setup", LoginRequest{Username: "admin", Password: "admin123"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Admin created successfully")
		assert.NotContains(t, w.Body.String(), "admin123")
	})

	t.Run("second admin rejected", func(t *testing.T) {
		w := postJSON(t, service.Setup, "/admin/setup", LoginRequest{Username: "other", Password: "admin123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Admin already exists", response.Message)
	})
}

func TestAuthService_ConcurrentSetup(t *testing.T) {
	bolt, err := store.OpenBolt(filepath.Join(t.TempDir(), "ledger.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	backends := map[string]store.Store{
		"memory": store.NewMemory(),
		"bolt":   bolt,
	}

	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			service := NewAuthService(st, nil, config.JWTConfig{SecretKey: "test-secret", Expiry: time.Hour}, testArgon2)

			codes := make([]int, 10)
			var wg sync.WaitGroup
			for i := range codes {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					body := fmt.Sprintf(`{"username":"admin%d","password":"admin123"}`, i)
					w := httptest.NewRecorder()
					service.Setup(w, httptest.NewRequest(http.MethodPost, "/admin/setup", bytes.NewBufferString(body)))
					codes[i] = w.Code
				}(i)
			}
			wg.Wait()

			created := 0
			for _, code := range codes {
				if code == http.StatusOK {
					created++
				} else {
					assert.Equal(t, http.StatusBadRequest, code)
				}
			}
			assert.Equal(t, 1, created)

			n, err := st.CountAdmins(t.Context())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	service, _ := newTestAuthService(t)
	_, err := service.CreateAdmin(t.Context(), "admin", "admin123")
	require.NoError(t, err)

	t.Run("successful login", func(t *testing.T) {
		w := postJSON(t, service.Login, "/admin/login", LoginRequest{Username: "admin", Password: "admin123"})
		require.Equal(t, http.StatusOK, w.Code)

		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "admin", response.Admin.Username)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(response.Token, claims, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, response.Admin.ID, claims["id"])
		assert.Equal(t, "admin", claims["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(t, service.Login, "/admin/login", LoginRequest{Username: "admin", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown admin", func(t *testing.T) {
		w := postJSON(t, service.Login, "/admin/login", LoginRequest{Username: "ghost", Password: "admin123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing username", func(t *testing.T) {
		w := postJSON(t, service.Login, "/admin/login", LoginRequest{Password: "admin123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Username is required", response.Message)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	service := NewAuthService(store.NewMemory(), db, config.JWTConfig{SecretKey: "test-secret", Expiry: time.Hour}, testArgon2)

	mock.ExpectSet("blacklist:abc.def.ghi", "1", time.Hour).SetVal("OK")

	r := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	w := httptest.NewRecorder()

	service.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHashing(t *testing.T) {
	service, _ := newTestAuthService(t)

	hashed, err := service.hashPassword("s3cret!")
	require.NoError(t, err)

	assert.True(t, service.verifyPassword("s3cret!", hashed))
	assert.False(t, service.verifyPassword("s3cret?", hashed))
	assert.False(t, service.verifyPassword("s3cret!", "not-a-hash"))
}
