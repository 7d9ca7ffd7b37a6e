package primary

import "context"

// TokenVerifier validates bearer tokens issued by the auth service
type TokenVerifier interface {
	// VerifyToken checks the signature and expiry and returns the user id
	// carried in the subject claim.
	VerifyToken(ctx context.Context, token string) (int64, error)
}
