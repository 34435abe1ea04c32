// Package token issues and verifies short-lived signed download tokens, so
// backup files can be fetched with a plain GET without exposing the file
// path or requiring a session on the download request itself.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const downloadTokenTTL = 5 * time.Minute

// Claims binds a token to one file of one backup job.
type Claims struct {
	JobID  int64 `json:"job_id"`
	FileID int64 `json:"file_id"`
	jwt.RegisteredClaims
}

// Signer signs and verifies download tokens with a shared HMAC secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("download token secret must be at least 16 bytes")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign issues a token for one backup file, returning the token and its
// expiry.
func (s *Signer) Sign(jobID, fileID int64) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(downloadTokenTTL)
	claims := Claims{
		JobID:  jobID,
		FileID: fileID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns the job and file it grants access to.
func (s *Signer) Verify(tokenStr string) (jobID, fileID int64, err error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, 0, errors.New("download token expired")
		}
		return 0, 0, fmt.Errorf("invalid download token: %w", err)
	}
	if !tok.Valid {
		return 0, 0, errors.New("invalid download token")
	}
	return claims.JobID, claims.FileID, nil
}
