package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

const minPasswordLen = 6

// Provider authenticates accounts and issues bearer tokens.
type Provider struct {
	store      AccountStore
	secret     []byte
	tokenTTL   time.Duration
	resetTTL   time.Duration
	bcryptCost int
	limiter    *signInLimiter
	logger     zerolog.Logger
}

// ProviderConfig configures the standalone provider.
type ProviderConfig struct {
	TokenSecret  string
	TokenTTL     time.Duration
	ResetTTL     time.Duration
	BcryptCost   int
	SignInPerMin int
}

func NewProvider(store AccountStore, cfg ProviderConfig, logger zerolog.Logger) *Provider {
	return &Provider{
		store:      store,
		secret:     []byte(cfg.TokenSecret),
		tokenTTL:   cfg.TokenTTL,
		resetTTL:   cfg.ResetTTL,
		bcryptCost: cfg.BcryptCost,
		limiter:    newSignInLimiter(cfg.SignInPerMin),
		logger:     logger,
	}
}

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	Account Account `json:"account"`
	Token   string  `json:"token"`
}

// SignUp registers a new account and returns a session for it.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: minimum %d characters", apperr.ErrWeakSecret, minPasswordLen)
	}
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := &accountRow{
		Email:        email,
		EmailLower:   strings.ToLower(email),
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := p.store.Create(ctx, row); err != nil {
		return nil, err
	}

	return p.session(row)
}

// SignIn verifies credentials and returns a session. Lookups and mismatches
// are collapsed into ErrInvalidCredentials so the response does not reveal
// whether the email exists.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	emailLower := strings.ToLower(strings.TrimSpace(email))
	if !p.limiter.allow(emailLower) {
		return nil, apperr.ErrRateLimited
	}

	row, err := p.store.GetByEmail(ctx, emailLower)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}
	if row.Disabled {
		return nil, apperr.ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword(row.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	return p.session(row)
}

// SendPasswordReset issues a short-lived reset token for the account. Mail
// delivery is an external collaborator; the token is logged for the
// dispatcher to pick up. Unknown emails return nil so the endpoint does not
// leak which addresses are registered.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	emailLower := strings.ToLower(strings.TrimSpace(email))
	row, err := p.store.GetByEmail(ctx, emailLower)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			p.logger.Info().Str("email", emailLower).Msg("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}

	token, err := generateToken(row.ID.String(), row.Email, row.DisplayName, "reset", p.secret, p.resetTTL)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	p.logger.Info().
		Str("account_id", row.ID.String()).
		Str("reset_token", token).
		Msg("password reset token issued")
	return nil
}

// Verify parses a bearer token into the Account it represents.
func (p *Provider) Verify(tokenString string) (*Account, error) {
	claims, err := parseToken(tokenString, p.secret)
	if err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if claims.Purpose != "" {
		// Reset tokens are single-purpose; they never grant API access.
		return nil, apperr.ErrInvalidCredentials
	}
	return &Account{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

func (p *Provider) session(row *accountRow) (*Session, error) {
	token, err := generateToken(row.ID.String(), row.Email, row.DisplayName, "", p.secret, p.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{
		Account: Account{ID: row.ID.String(), Email: row.Email, DisplayName: row.DisplayName},
		Token:   token,
	}, nil
}

// signInLimiter throttles sign-in attempts per email with a fixed
// one-minute window.
type signInLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
	window time.Time
}

func newSignInLimiter(perMin int) *signInLimiter {
	return &signInLimiter{
		max:    perMin,
		counts: make(map[string]int),
		window: time.Now(),
	}
}

func (l *signInLimiter) allow(key string) bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.window) > time.Minute {
		l.counts = make(map[string]int)
		l.window = now
	}
	l.counts[key]++
	return l.counts[key] <= l.max
}
