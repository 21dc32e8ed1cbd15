// Package auth выдаёт и проверяет JWT-токены и проверяет пароли пользователей.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/storage"
)

// Роли пользователей.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// TokenExp — срок жизни токена по умолчанию.
const TokenExp = time.Hour * 24

var (
	// ErrInvalidCredentials — неверный email или пароль. Причина намеренно не уточняется.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken — токен не прошёл проверку подписи или срока действия.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims — полезная нагрузка токена. Subject содержит email пользователя.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Tokens выпускает и проверяет токены HS256.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clk    func() time.Time
}

// NewTokens создаёт выпускающего токены; ttl <= 0 означает TokenExp.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = TokenExp
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clk: time.Now}
}

// Issue выпускает токен для пользователя и возвращает его вместе со сроком действия.
func (t *Tokens) Issue(user models.User) (string, time.Time, error) {
	now := t.clk()
	expiresAt := now.Add(t.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Role:     user.Role,
		Username: user.Username,
	})

	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse проверяет подпись и срок действия токена.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return t.secret, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword хеширует пароль bcrypt с заданной стоимостью.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Session — результат успешного входа.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.UserInfo
}

// Service проверяет учётные данные и выпускает токены.
type Service struct {
	users     storage.UserStorage
	tokens    *Tokens
	dummyHash []byte
}

// NewService создаёт сервис входа.
func NewService(users storage.UserStorage, tokens *Tokens) (*Service, error) {
	// Хеш для сравнения при неизвестном email, чтобы время ответа не выдавало наличие пользователя.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Service{users: users, tokens: tokens, dummyHash: dummy}, nil
}

// Login проверяет email и пароль. Неизвестный пользователь и неверный пароль
// дают одну и ту же ошибку ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.Lookup(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return Session{}, fmt.Errorf("lookup user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		logger.Log.Info("login failed", zap.String("reason", "unknown user"))
		return Session{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Info("login failed", zap.String("reason", "wrong password"), zap.String("role", user.Role))
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user.Info()}, nil
}

// Tokens возвращает выпускающего токены.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

type claimsKey struct{}

// WithClaims кладёт проверенные утверждения токена в контекст.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext достаёт утверждения токена из контекста.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}
