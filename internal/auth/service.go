// Package auth manages user accounts and bearer tokens.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("user not found")
	ErrTokenInvalid       = errors.New("invalid or expired token")
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	passwordHash string
}

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	UserID string
	Role   string
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	db       *sql.DB
	secret   []byte
	tokenTTL time.Duration

	memMu      sync.RWMutex
	memByID    map[string]User
	memByEmail map[string]string
}

// New builds the auth service. A nil db means memory mode.
func New(db *sql.DB, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:         db,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		memByID:    make(map[string]User),
		memByEmail: make(map[string]string),
	}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (in *RegisterInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return apperr.Invalid("valid email is required")
	}
	if len(in.Password) < 8 {
		return apperr.Invalid("password must be at least 8 characters")
	}
	if in.Name == "" {
		return apperr.Invalid("name is required")
	}
	return nil
}

// Register creates a customer account and returns it with a signed token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, string, error) {
	if err := in.validate(); err != nil {
		return User{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", err
	}
	now := time.Now().UTC()
	u := User{
		ID:           "usr_" + uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		Role:         RoleCustomer,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
		passwordHash: string(hash),
	}

	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, taken := s.memByEmail[u.Email]; taken {
			return User{}, "", ErrEmailTaken
		}
		s.memByID[u.ID] = u
		s.memByEmail[u.Email] = u.ID
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, name, phone, role, active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Email, u.passwordHash, u.Name, nilIfEmpty(u.Phone), u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return User{}, "", ErrEmailTaken
			}
			return User{}, "", err
		}
	}

	token, err := s.issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.byEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", err
	}
	if !u.Active {
		return User{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}
	token, err := s.issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

func (s *Service) issue(u User) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken parses a bearer token and returns its claims.
func (s *Service) VerifyToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}
	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || tc.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return Claims{UserID: tc.Subject, Role: tc.Role}, nil
}

func (s *Service) byEmail(ctx context.Context, email string) (User, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		id, ok := s.memByEmail[email]
		if !ok {
			return User{}, ErrNotFound
		}
		return s.memByID[id], nil
	}
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, phone, role, active, created_at, updated_at
		 FROM users WHERE email = $1`, email))
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		u, ok := s.memByID[id]
		if !ok {
			return User{}, ErrNotFound
		}
		return u, nil
	}
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, phone, role, active, created_at, updated_at
		 FROM users WHERE id = $1`, id))
}

// ListUsers returns all accounts, newest first. Admin surface.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	if s.db == nil {
		s.memMu.RLock()
		out := make([]User, 0, len(s.memByID))
		for _, u := range s.memByID {
			out = append(out, u)
		}
		s.memMu.RUnlock()
		sortUsers(out)
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, password_hash, name, phone, role, active, created_at, updated_at
		 FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type UpdateUserInput struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// UpdateUser changes role or active flag. Admin surface.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	if in.Role == nil && in.Active == nil {
		return User{}, apperr.Invalid("empty update payload")
	}
	if in.Role != nil && *in.Role != RoleCustomer && *in.Role != RoleAdmin {
		return User{}, apperr.Invalid("invalid role")
	}
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		u, ok := s.memByID[id]
		if !ok {
			return User{}, ErrNotFound
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.Active != nil {
			u.Active = *in.Active
		}
		u.UpdatedAt = time.Now().UTC()
		s.memByID[id] = u
		return u, nil
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = $1, active = $2, updated_at = $3 WHERE id = $4`,
		u.Role, u.Active, u.UpdatedAt, id)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrNotFound
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Service) scanOne(row *sql.Row) (User, error) {
	u, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Service) scanRow(row rowScanner) (User, error) {
	var u User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.passwordHash, &u.Name, &phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	u.Phone = phone.String
	return u, nil
}

func sortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
