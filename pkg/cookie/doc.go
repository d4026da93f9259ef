// Package cookie provides HTTP cookie management with optional signing and encryption.
//
// A [Manager] handles plain, signed and encrypted cookies plus flash messages.
// The secret is optional. Without one, signed and encrypted operations return
// [ErrNoSecret] and [Manager.HasSecret] reports false, which is how callers
// decide whether the visit cookie is signed and whether identity errors can
// travel across an external redirect.
//
//	m := cookie.New(
//		cookie.WithSecret(os.Getenv("COOKIE_SECRET")),
//		cookie.WithSecure(true),
//	)
//
//	err := m.SetSigned(w, "tg-visit", key, 0)
//	key, err := m.GetSigned(r, "tg-visit")
//
// [Manager.Sign] and [Manager.Verify] expose the signature format
// base64(value).base64(hmac-sha256) for cookies whose attributes differ
// from the manager's defaults.
//
// Flash messages are encrypted, single-read values:
//
//	_ = m.SetFlash(w, "identity_errors", []string{"Not member of group: admin"})
//
//	var errs []string
//	err := m.Flash(w, r, "identity_errors", &errs)
//
// Secrets shorter than 32 bytes are ignored.
package cookie
