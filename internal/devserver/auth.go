package devserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// Claims are carried by devserver tokens. The subject is the account id.
type Claims struct {
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for account.
func IssueToken(secret string, account entity.AccountSummary, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserType: string(account.UserType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header {
			writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		var claims Claims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "User ID not found in token")
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), id)))
	})
}
