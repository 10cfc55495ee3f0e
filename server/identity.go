package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/jsphweid/levelup/constants"
)

const cookieMaxAge = 365 * 24 * time.Hour

// Identity hands every browser an anonymous user id, kept in a signed
// cookie so it can't be swapped for someone else's.
type Identity struct {
	codec *securecookie.SecureCookie
}

// NewIdentity signs cookies with secret. Without a secret a random key is
// used, so ids only survive as long as the process.
func NewIdentity(secret []byte) *Identity {
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(secret, nil).MaxAge(int(cookieMaxAge.Seconds()))
	return &Identity{codec: codec}
}

// Lookup reads the user id from the request's cookie.
func (i *Identity) Lookup(r *http.Request) (string, bool) {
	c, err := r.Cookie(constants.CookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := i.codec.Decode(constants.CookieName, c.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// UserID returns the request's user id, minting one and setting the cookie
// when there is none or it doesn't verify.
func (i *Identity) UserID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := i.Lookup(r); ok {
		return id, nil
	}
	id := uuid.NewString()
	encoded, err := i.codec.Encode(constants.CookieName, id)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     constants.CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}
