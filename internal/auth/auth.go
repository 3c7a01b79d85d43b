// Package auth issues and verifies session tokens for partners, technicians and
// the operator account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RolePartner    Role = "partner"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Session is the identity a request acts as. PartnerID is set for partners and
// technicians, TeamID only for technicians.
type Session struct {
	Role      Role   `json:"role"`
	UserID    uint64 `json:"user_id"`
	Username  string `json:"username"`
	PartnerID uint64 `json:"partner_id,omitempty"`
	TeamID    uint64 `json:"team_id,omitempty"`
	TokenID   string `json:"-"`
}

type claims struct {
	Role      Role   `json:"role"`
	Username  string `json:"username"`
	PartnerID uint64 `json:"partner_id,omitempty"`
	TeamID    uint64 `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// Token is what a successful login returns.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Session   Session   `json:"session"`
}

var errBadCredentials = errs.Unauthorized("invalid username or password")

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(s Session) (*Token, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	s.TokenID = uuid.NewString()
	c := claims{
		Role:      s.Role,
		Username:  s.Username,
		PartnerID: s.PartnerID,
		TeamID:    s.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(s.UserID, 10),
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Token: signed, ExpiresAt: exp.UTC().Truncate(time.Second), Session: s}, nil
}

// Parse verifies the signature and expiry and returns the session behind raw.
func (t *Tokens) Parse(raw string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Unauthorized("session expired")
		}
		return nil, errs.Unauthorized("invalid session token")
	}
	switch c.Role {
	case RolePartner, RoleTechnician, RoleAdmin:
	default:
		return nil, errs.Unauthorized("invalid session role")
	}
	uid, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return nil, errs.Unauthorized("invalid session subject")
	}
	return &Session{
		Role:      c.Role,
		UserID:    uid,
		Username:  c.Username,
		PartnerID: c.PartnerID,
		TeamID:    c.TeamID,
		TokenID:   c.ID,
	}, nil
}

// HashPassword returns the bcrypt hash stored for an account.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errs.Validation("password is required")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

type PartnerLookup interface {
	GetByUsername(ctx context.Context, username string) (*model.Partner, error)
}

type TechnicianLookup interface {
	GetByUsername(ctx context.Context, username string) (*model.Technician, error)
}

// Authenticator checks credentials and hands out tokens.
type Authenticator struct {
	partners          PartnerLookup
	technicians       TechnicianLookup
	tokens            *Tokens
	adminUsername     string
	adminPasswordHash string
}

// NewAuthenticator: an empty adminPasswordHash disables the operator login.
func NewAuthenticator(partners PartnerLookup, technicians TechnicianLookup, tokens *Tokens, adminUsername, adminPasswordHash string) *Authenticator {
	return &Authenticator{
		partners:          partners,
		technicians:       technicians,
		tokens:            tokens,
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
	}
}

func (a *Authenticator) Tokens() *Tokens { return a.tokens }

func (a *Authenticator) LoginPartner(ctx context.Context, username, password string) (*Token, error) {
	p, err := a.partners.GetByUsername(ctx, username)
	if err != nil {
		return nil, credentialsError(err)
	}
	if !p.IsActive || !matches(p.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return a.tokens.Issue(Session{Role: RolePartner, UserID: p.ID, Username: p.Username, PartnerID: p.ID})
}

func (a *Authenticator) LoginTechnician(ctx context.Context, username, password string) (*Token, error) {
	t, err := a.technicians.GetByUsername(ctx, username)
	if err != nil {
		return nil, credentialsError(err)
	}
	if !t.IsActive || !matches(t.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return a.tokens.Issue(Session{Role: RoleTechnician, UserID: t.ID, Username: t.Username, PartnerID: t.PartnerID, TeamID: t.TeamID})
}

func (a *Authenticator) LoginAdmin(_ context.Context, username, password string) (*Token, error) {
	if a.adminPasswordHash == "" || username != a.adminUsername || !matches(a.adminPasswordHash, password) {
		return nil, errBadCredentials
	}
	return a.tokens.Issue(Session{Role: RoleAdmin, Username: username})
}

func matches(hash, password string) bool {
	return password != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// unknown usernames look like wrong passwords
func credentialsError(err error) error {
	if errs.IsNotFound(err) {
		return errBadCredentials
	}
	return err
}
