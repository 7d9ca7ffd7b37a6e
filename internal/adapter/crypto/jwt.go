package crypto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/static/errs"
)

var _ primary.TokenVerifier = (*JWTServiceImpl)(nil)

// JWTServiceImpl verifies HMAC signed bearer tokens issued by the auth service
type JWTServiceImpl struct {
	HMACSecretKey string
	Method        string
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	method := jwtConfig.Method
	if method == "" {
		method = jwt.SigningMethodHS256.Alg()
	}
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		Method:        method,
	}
}

// GenerateTokenHMAC signs claims with the shared secret. The notifier never
// issues tokens to clients; this is used by tooling and tests.
func (J JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, claims map[string]interface{}) (string, error) {
	signingMethod := jwt.GetSigningMethod(J.Method)
	if signingMethod == nil {
		return "", fmt.Errorf("unsupported signing method: %s", J.Method)
	}

	// Ensure the claims map contains an expiration time
	if _, exists := claims["exp"]; !exists {
		claims["exp"] = time.Now().Add(time.Hour * 1).Unix()
	}

	tok := jwt.NewWithClaims(signingMethod, jwt.MapClaims(claims))
	return tok.SignedString([]byte(J.HMACSecretKey))
}

// VerifyToken checks the signature and expiry and returns the user id from
// the sub claim, which may be a number or a numeric string
func (J JWTServiceImpl) VerifyToken(ctx context.Context, token string) (int64, error) {
	if J.HMACSecretKey == "" {
		return 0, fmt.Errorf("%w: no signing secret configured", errs.ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithValidMethods([]string{J.Method}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return 0, errs.ErrTokenExpired
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return 0, errs.ErrInvalidToken
	}

	userID, err := subjectID(claims["sub"])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	return userID, nil
}

func subjectID(sub interface{}) (int64, error) {
	var id int64
	switch v := sub.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("subject %v is not an integer", v)
		}
		id = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("subject %q is not numeric", v)
		}
		id = n
	case nil:
		return 0, fmt.Errorf("subject claim missing")
	default:
		return 0, fmt.Errorf("unsupported subject type %T", sub)
	}
	if id <= 0 {
		return 0, fmt.Errorf("subject %d is not a user id", id)
	}
	return id, nil
}
