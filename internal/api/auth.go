package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultJwtExpiration = time.Hour

	userIdClaim   = "userId"
	usernameClaim = "username"
	expClaim      = "exp"
	iatClaim      = "iat"
	jtiClaim      = "jti"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller decoded from a session token.
type Identity struct {
	UserId   int
	Username string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func (s *App) createToken(id Identity, exp time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   id.UserId,
		usernameClaim: id.Username,
		iatClaim:      now.Unix(),
		expClaim:      now.Add(exp).Unix(),
		jtiClaim:      uuid.NewString(),
	})

	return token.SignedString(s.signingKey)
}

func (s *App) verifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return token, nil
}

func (s *App) identityFromToken(tokenString string) (Identity, error) {
	token, err := s.verifyToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}

	// MapClaims.Valid only checks exp when present
	if _, ok := claims[expClaim]; !ok {
		return Identity{}, errors.New("token has no expiry")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return Identity{}, errors.New("invalid user id claim")
	}

	username, ok := claims[usernameClaim].(string)
	if !ok {
		return Identity{}, errors.New("invalid username claim")
	}

	return Identity{UserId: int(userId), Username: username}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}

	return strings.TrimSpace(token), nil
}
