// Package secrets redacts credentials before they reach logs.
package secrets

import "net/url"

// Mask keeps the first four characters of secrets longer than eight and
// replaces everything else.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..."
}

// MaskURL redacts the userinfo of a URL. A Sentry DSN carries its key as the
// username, so usernames are masked too, not only passwords. Strings that do
// not parse as URLs with a host are returned fully masked.
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Mask(rawURL)
	}
	if u.User == nil {
		return rawURL
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	} else {
		u.User = url.User(Mask(u.User.Username()))
	}
	return u.String()
}
