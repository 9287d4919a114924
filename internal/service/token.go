package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_app/internal/hash"
	"github.com/Skotchmaster/order_app/internal/models"
	"github.com/Skotchmaster/order_app/internal/repo"
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

type TokenService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates the customer row and the credential row atomically.
func (t *TokenService) Register(ctx context.Context, login, password, username, email, phone string) (*models.Customer, error) {
	passwordHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{Username: username, Email: email, Phone: phone}
	user := &models.User{Login: login, PasswordHash: passwordHash, Role: "customer"}
	if err := t.Repo.RegisterCustomer(ctx, customer, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: login, email or phone is already in use", ErrConflict)
		}
		return nil, err
	}
	return customer, nil
}

// Login checks credentials and issues a fresh pair. Storing the pair on the
// user row supersedes any previously issued session.
func (t *TokenService) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	user, err := t.Repo.FindUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid login or password")
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, errors.New("invalid login or password")
	}
	return t.issuePair(ctx, user)
}

// Refresh rotates both tokens. Only the latest issued refresh token is
// accepted.
func (t *TokenService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := t.parse(rawToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if typ, ok := claims["typ"].(string); !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, errors.New("invalid refresh token")
	}
	user, err := t.Repo.FindUserByID(ctx, uint(sub))
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if user.RefreshToken != rawToken {
		return nil, errors.New("refresh token superseded")
	}
	return t.issuePair(ctx, user)
}

func (t *TokenService) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := t.signAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := t.signRefresh(user)
	if err != nil {
		return nil, err
	}
	if err := t.Repo.SaveTokens(ctx, user.ID, access, refresh); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *TokenService) signAccess(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"exp":  time.Now().Add(accessTTL).Unix(),
		"jti":  uuid.NewString(),
	}
	if user.CustomerID != nil {
		claims["cid"] = *user.CustomerID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.JWTSecret)
}

func (t *TokenService) signRefresh(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(refreshTTL).Unix(),
		"typ": "refresh",
		"jti": uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.JWTSecret)
}

func (t *TokenService) parse(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return t.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	return claims, nil
}

// RequireAuth authenticates the bearer token and puts {id, role, customerID}
// on the context. A structurally valid access token that is not the stored
// latest one is rejected, which is what makes sessions single-active.
func (t *TokenService) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims, err := t.parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if typ, ok := claims["typ"].(string); ok && typ == "refresh" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		sub, ok := claims["sub"].(float64)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		user, err := t.Repo.FindUserByID(c.Request().Context(), uint(sub))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if user.AccessToken != raw {
			return echo.NewHTTPError(http.StatusUnauthorized, "token superseded by a newer session")
		}

		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		if user.CustomerID != nil {
			c.Set("customerID", *user.CustomerID)
		}
		return next(c)
	}
}
