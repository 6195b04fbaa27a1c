package gateway

import (
	stderrors "errors"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/NguyenThanhBinh1210/liveapp/tools/errs"
	"github.com/NguyenThanhBinh1210/liveapp/tools/security"
)

type Authenticator struct {
	opts security.Options
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{opts: security.DefaultOptions(secret)}
}

// Verify validates a token and returns the subject user id plus whether the
// token carries support scope. An expired token surfaces as
// errs.ErrTokenExpired so the handler can reply with the dedicated
// tokenExpired event.
func (a *Authenticator) Verify(token string) (userID string, support bool, err error) {
	claims, verr := security.Verify(a.opts, token)
	if verr != nil {
		if stderrors.Is(verr, jwtlib.ErrTokenExpired) {
			return "", false, errs.ErrTokenExpired.Wrap()
		}
		return "", false, errs.ErrAuthFailed.WrapMsg("verify token", "err", verr)
	}
	sub := claims.UserID()
	if sub == "" {
		return "", false, errs.ErrAuthFailed.WrapMsg("token missing subject")
	}
	for _, s := range scopes(claims) {
		if s == "support" {
			support = true
		}
	}
	return sub, support, nil
}

func scopes(c *security.JWTClaims) []string {
	raw, ok := c.MapClaims["scope"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
