package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-mess/internal/common"
)

// Claim names carried by access tokens besides the registered ones.
const (
	ClaimRole   = "role"
	ClaimRegNum = "reg_num"
)

// Verifier checks bearer tokens issued by the external identity service and turns
// them into a caller identity. It never issues tokens.
type Verifier struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	algorithm jwa.SignatureAlgorithm
	now       func() time.Time
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithAudience requires the aud claim to contain aud.
func WithAudience(aud string) Option {
	return func(v *Verifier) { v.audience = strings.TrimSpace(aud) }
}

// WithClockSkew tolerates clock drift when checking exp and nbf.
func WithClockSkew(d time.Duration) Option {
	return func(v *Verifier) { v.clockSkew = d }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier builds an HS256 verifier. An empty issuer disables the iss check.
func NewVerifier(secret, issuer string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(issuer),
		clockSkew: 30 * time.Second,
		algorithm: jwa.HS256,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates signature, algorithm, issuer, audience and lifetime, then reads the
// identity claims. Failures are returned as 401 AppErrors.
func (v *Verifier) Verify(token string) (common.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Identity{}, unauthorized("missing token", nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return common.Identity{}, unauthorized("invalid token", err)
	}
	if algorithm != v.algorithm {
		return common.Identity{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Identity{}, unauthorized("invalid token", err)
	}
	if err := jwt.Validate(parsed, v.validateOptions()...); err != nil {
		return common.Identity{}, unauthorized("invalid token", err)
	}
	return identityFromToken(parsed)
}

func (v *Verifier) validateOptions() []jwt.ValidateOption {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.clockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.clockSkew))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return opts
}

func identityFromToken(tok jwt.Token) (common.Identity, error) {
	id := common.Identity{Subject: strings.TrimSpace(tok.Subject())}
	if raw, ok := tok.Get(ClaimRole); ok {
		id.Role, _ = raw.(string)
	}
	if raw, ok := tok.Get(ClaimRegNum); ok {
		id.RegNum, _ = raw.(string)
	}
	id.Role = strings.ToLower(strings.TrimSpace(id.Role))
	id.RegNum = strings.TrimSpace(id.RegNum)

	if id.Subject == "" {
		return common.Identity{}, unauthorized("invalid token", errors.New("empty subject"))
	}
	switch id.Role {
	case common.RoleStaff, common.RoleStudent:
	default:
		return common.Identity{}, unauthorized("invalid token", fmt.Errorf("unknown role %q", id.Role))
	}
	return id, nil
}

// tokenAlgorithm reads the alg header without trusting it, rejecting unsigned tokens.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func unauthorized(msg string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", msg, http.StatusUnauthorized, err)
}
