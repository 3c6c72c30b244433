package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultIssuer identifies tokens minted by this service.
const DefaultIssuer = "hireflow-auth"

// DefaultTokenExpiration is the fixed token lifetime in minutes.
const DefaultTokenExpiration = 30

// TokenService mints and parses bearer tokens. Parsing success does not imply
// the token is still usable: revocation is the Access Control Gate's concern.
type TokenService interface {
	// Issue mints a token for the account with a snapshot of its role names.
	Issue(user *User) (string, error)
	// SignClaims signs an arbitrary claim set with the configured key.
	SignClaims(claims *JWTClaims) (string, error)
	// Validate verifies signature, issuer, and expiry.
	Validate(tokenString string) (AuthClaims, error)
	// Parse verifies the signature only. Used by the logout path, which must
	// be able to read the revocation key out of an already-expired token.
	Parse(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	logger          Logger
	now             func() time.Time
}

// TokenServiceOption customizes token service construction.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a new TokenService instance. tokenExpiration is in
// minutes; zero falls back to the fixed 30 minute lifetime.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, logger Logger, opts ...TokenServiceOption) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if tokenExpiration <= 0 {
		tokenExpiration = DefaultTokenExpiration
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}

	ts := &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		logger:          logger,
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue mints a signed token for the given account. Subject and audience are
// both the account id; the role snapshot is comma-joined into a single claim.
func (ts *TokenServiceImpl) Issue(user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now()
	id := user.ID.String()

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   id,
			Audience:  jwt.ClaimStrings{id},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Minute)),
		},
		UID:   id,
		Roles: JoinRoleNames(user.RoleNames()),
		TID:   uuid.NewString(),
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.parse(tokenString, false)
}

// Parse verifies the signature and shape without validating expiry.
func (ts *TokenServiceImpl) Parse(tokenString string) (AuthClaims, error) {
	return ts.parse(tokenString, true)
}

func (ts *TokenServiceImpl) parse(tokenString string, skipClaimsValidation bool) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" && !skipClaimsValidation {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if skipClaimsValidation {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService could not decode or validate claims")
	return nil, goerrors.New(ErrTokenMalformed.Message, ErrTokenMalformed.Category).
		WithTextCode(ErrTokenMalformed.TextCode).
		WithCode(goerrors.CodeUnauthorized)
}
