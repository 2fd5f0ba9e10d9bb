package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	tokenSalt = []byte("kinerja.core.user.password_reset")

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes single-use password reset tokens.
// A token is "<unix day in base36>-<hmac>"; the hmac covers the password hash and the last login,
// so it stops verifying once the password changes or the user logs in again.
type tokenGenerator struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time // mockable
}

func newTokenGenerator(secret string, timeout time.Duration) *tokenGenerator {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), secret...))
	return &tokenGenerator{secret: key[:], timeout: timeout, now: time.Now}
}

func (g *tokenGenerator) make(usr User) string {
	return g.makeWithDay(usr, unixDay(g.now()))
}

func (g *tokenGenerator) verify(usr User, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errInvalidToken
	}
	day, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(g.makeWithDay(usr, day)), []byte(token)) == 0 {
		return errInvalidToken
	}
	maxDays := int64(g.timeout / (24 * time.Hour))
	if unixDay(g.now())-day > maxDays {
		return errTokenExpired
	}
	return nil
}

func (g *tokenGenerator) makeWithDay(usr User, day int64) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	mac.Write([]byte(strconv.FormatInt(day, 10)))
	return strconv.FormatInt(day, 36) + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}

func unixDay(t time.Time) int64 {
	return t.Unix() / int64(24*time.Hour/time.Second)
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}
