package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/repository"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "studiobackend"

type AuthHandler struct {
	UserRepo   repository.UserRepository
	Secret     []byte
	Expiration time.Duration
}

func NewAuthHandler(userRepo repository.UserRepository, secret []byte, expiration time.Duration) *AuthHandler {
	return &AuthHandler{UserRepo: userRepo, Secret: secret, Expiration: expiration}
}

type LoginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.UserRepo.GetByEmail(payload.Email)
	if err != nil || !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	tokenString, expiresAt, err := IssueToken(h.Secret, user.ID, h.Expiration)
	if err != nil {
		log.Printf("handlers: failed to sign token for user %d: %v", user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	})
}

// CurrentUser returns the authenticated owner with their team.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// IssueToken signs an owner token whose subject is the user ID.
func IssueToken(secret []byte, userID uint, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
