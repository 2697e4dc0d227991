package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatrelay/internal/store"
)

// ErrInvalidToken covers every credential failure: bad signature,
// expiry, and tokens whose subject no longer resolves to a user.
var ErrInvalidToken = errors.New("authentication error")

// Claims is the payload carried inside a connection token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Identity is a verified connection principal.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
}

// UserDirectory resolves a token subject to a stored user record.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// Verifier validates connection tokens and resolves them to identities.
type Verifier struct {
	secret []byte
	users  UserDirectory
}

func NewVerifier(secret string, users UserDirectory) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify parses and validates the token, then resolves the user. Any
// failure collapses to ErrInvalidToken so callers refuse the connection
// without leaking which check failed.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: user.ID, Username: user.Username, Avatar: user.Avatar}, nil
}

// IssueToken creates a signed token for a user. The service only
// verifies tokens; issuing lives here for tooling and tests.
func (v *Verifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chatrelay",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
