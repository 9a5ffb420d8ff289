package session

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
)

// CookieCodec reads and writes the credentials cookie.
type CookieCodec struct {
	name   string
	secure bool
	maxAge time.Duration
	sc     *securecookie.SecureCookie
}

// NewCookieCodec returns a codec signing and encrypting cookies with keys derived from secret.
func NewCookieCodec(name, secret string, secure bool, maxAge time.Duration) *CookieCodec {
	hashKey, blockKey := deriveKeys(secret)
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(maxAge.Seconds()))
	return &CookieCodec{
		name:   name,
		secure: secure,
		maxAge: maxAge,
		sc:     sc,
	}
}

func (cc *CookieCodec) Name() string { return cc.name }

// Read returns the credentials carried by r.
// A missing or tampered cookie yields zero Credentials and no error.
func (cc *CookieCodec) Read(r *http.Request) Credentials {
	var creds Credentials
	cookie, err := r.Cookie(cc.name)
	if err != nil {
		return creds
	}
	if err := cc.sc.Decode(cc.name, cookie.Value, &creds); err != nil {
		return Credentials{}
	}
	return creds
}

// Write sets the credentials cookie, restarting its max-age.
func (cc *CookieCodec) Write(w http.ResponseWriter, creds Credentials) error {
	encoded, err := cc.sc.Encode(cc.name, creds)
	if err != nil {
		return errors.Wrap(err, "encoding session cookie")
	}
	http.SetCookie(w, cc.cookie(encoded, int(cc.maxAge.Seconds())))
	return nil
}

// Clear expires the credentials cookie.
func (cc *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, cc.cookie("", -1))
}

func (cc *CookieCodec) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     cc.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   cc.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}

func deriveKeys(secret string) (hashKey, blockKey []byte) {
	h := sha256.Sum256([]byte("session.hash." + secret))
	b := sha256.Sum256([]byte("session.block." + secret))
	return h[:], b[:]
}
