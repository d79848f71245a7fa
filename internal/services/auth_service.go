package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
	"golang.org/x/crypto/argon2"
)

const minPasswordLength = 6

var errAdminExists = errors.New("admin already exists")

type AuthService struct {
	store  store.Store
	redis  *redis.Client
	jwt    config.JWTConfig
	argon2 config.Argon2Config
}

// LoginRequest represents the login request payload
// @Description Admin login request structure
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"admin123"`
}

// AdminInfo is the public part of an admin account
type AdminInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string    `json:"token"`
	Admin AdminInfo `json:"admin"`
}

func NewAuthService(st store.Store, redisClient *redis.Client, jwtCfg config.JWTConfig, argonCfg config.Argon2Config) *AuthService {
	return &AuthService{
		store:  st,
		redis:  redisClient,
		jwt:    jwtCfg,
		argon2: argonCfg,
	}
}

// Login handles admin authentication
// @Summary Admin login
// @Description Authenticate an admin with username and password
// @Tags admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /admin/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		SendErrorResponse(w, "Username is required", http.StatusBadRequest, nil)
		return
	}
	if req.Password == "" {
		SendErrorResponse(w, "Password is required", http.StatusBadRequest, nil)
		return
	}

	admin, err := s.store.GetAdminByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[AUTH] Unknown admin: %s", username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Admin lookup failed for %s: %v", username, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	if !s.verifyPassword(req.Password, admin.Password) {
		log.Printf("[AUTH] Invalid password for admin: %s", username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := s.generateJWT(admin)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for admin %s: %v", admin.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for admin %s", admin.ID)
	SendJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		Admin: AdminInfo{ID: admin.ID, Username: admin.Username},
	})
}

// Setup creates the first admin account
// @Summary Bootstrap admin
// @Description Create the initial admin account. Only allowed while no admin exists.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Setup request"
// @Success 200 {object} object{message=string,admin=AdminInfo}
// @Failure 400 {object} ErrorResponse "Invalid request or admin exists"
// @Router /admin/setup [post]
func (s *AuthService) Setup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Setup attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		SendErrorResponse(w, "Username is required and must be a string", http.StatusBadRequest, nil)
		return
	}
	if len(req.Password) < minPasswordLength {
		SendErrorResponse(w, "Password is required and must be at least 6 characters", http.StatusBadRequest, nil)
		return
	}

	admin, err := s.createFirstAdmin(r.Context(), username, req.Password)
	if errors.Is(err, errAdminExists) || errors.Is(err, store.ErrDuplicate) {
		SendErrorResponse(w, "Admin already exists", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Admin creation failed for %s: %v", username, err)
		SendErrorResponse(w, "Failed to create admin", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"message": "Admin created successfully",
		"admin":   AdminInfo{ID: admin.ID, Username: admin.Username},
	})
}

// Logout handles admin logout
// @Summary Logout admin
// @Description Blacklist the bearer token until it expires
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /admin/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			key := fmt.Sprintf("blacklist:%s", token)
			if err := s.redis.Set(r.Context(), key, "1", s.jwt.Expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	SendJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// CreateAdmin hashes the password and stores a new admin.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	hashed, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{Username: username, Password: hashed}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}

	log.Printf("[AUTH] Admin created - ID: %s, Username: %s", admin.ID, admin.Username)
	return admin, nil
}

// createFirstAdmin counts and inserts in one store transaction so concurrent
// setup requests cannot both create an admin.
func (s *AuthService) createFirstAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	hashed, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{Username: username, Password: hashed}
	err = s.store.InTx(ctx, func(l store.Ledger) error {
		count, err := l.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return errAdminExists
		}
		return l.CreateAdmin(ctx, admin)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[AUTH] First admin created - ID: %s, Username: %s", admin.ID, admin.Username)
	return admin, nil
}

func (s *AuthService) generateJWT(admin *models.Admin) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       admin.ID,
		"username": admin.Username,
		"exp":      time.Now().Add(s.jwt.Expiry).Unix(),
	})

	return token.SignedString([]byte(s.jwt.SecretKey))
}

func (s *AuthService) hashPassword(password string) (string, error) {
	salt := make([]byte, s.argon2.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, s.argon2.Time, s.argon2.Memory, s.argon2.Threads, s.argon2.KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (s *AuthService) verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, s.argon2.Time, s.argon2.Memory, s.argon2.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
