package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "koinonia.app/platform/internal/pkg/errors"
)

// JWTClaims defines the platform JWT claims.
type JWTClaims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	ExpiresIn  time.Duration
}

// GenerateToken creates a signed JWT for the given user.
func GenerateToken(cfg JWTConfig, userID uint64, username string, isAdmin bool) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := JWTClaims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and populates
// context. Optional routes use OptionalJWTAuth instead.
func JWTAuth(signingKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, signingKey, true)
		if !ok {
			return
		}
		bindUser(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth populates user context when a valid Bearer token is present
// and continues anonymously otherwise. Used by read endpoints whose results
// depend on the viewer (public vs member-visible events).
func OptionalJWTAuth(signingKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if claims, ok := parseBearer(c, signingKey, true); ok {
				bindUser(c, claims)
			} else {
				return // invalid token on an optional route is still rejected
			}
		}
		c.Next()
	}
}

func bindUser(c *gin.Context, claims *JWTClaims) {
	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("is_admin", claims.IsAdmin)
	c.Request = c.Request.WithContext(
		SetUserContext(c.Request.Context(), claims.UserID, claims.Username),
	)
}

func parseBearer(c *gin.Context, signingKey []byte, abort bool) (*JWTClaims, bool) {
	// Rejections are recorded as AppErrors; the ErrorHandler middleware
	// renders them once the chain unwinds.
	reject := func(appErr *apperrors.AppError) {
		if abort {
			_ = c.Error(appErr)
			c.Abort()
		}
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		reject(apperrors.Unauthorized(apperrors.CodeAuthFailed, "missing authorization header"))
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		reject(apperrors.Unauthorized(apperrors.CodeAuthFailed, "invalid authorization header format"))
		return nil, false
	}

	token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			reject(apperrors.Unauthorized(apperrors.CodeTokenExpired, "token expired"))
		} else {
			reject(apperrors.Unauthorized(apperrors.CodeTokenInvalid, "invalid token"))
		}
		return nil, false
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		reject(apperrors.Unauthorized(apperrors.CodeTokenInvalid, "invalid token claims"))
		return nil, false
	}
	return claims, true
}
