package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	// three base64url segments, header and payload starting with {"
	jwtPattern = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)

	// Authorization header values
	authSchemePattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`)

	// remote source URLs configured with a key in the query string
	credentialQueryPattern = regexp.MustCompile(`(?i)[?&](api_?key|token|access_token)=[^&\s]+`)
)

// sensitiveFields are attribute keys whose values are never logged.
var sensitiveFields = []string{
	"password",
	"token",
	"apiKey",
	"apikey",
	"api_key",
	"accessToken",
	"access_token",
	"refreshToken",
	"refresh_token",
	"credential",
	"credentials",
	"authorization",
	"auth",
	"bearer",
	"cookie",
	"privateKey",
	"private_key",
	"secretKey",
	"secret_key",
}

// DefaultRedactOptions returns the masq options applied to every handler.
// Extend them through NewReplaceAttr:
//
//	logging.NewReplaceAttr(masq.WithFieldName("remote_key"))
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+5)
	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(authSchemePattern),
		masq.WithRegex(credentialQueryPattern),
	)
}

// NewReplaceAttr builds a slog ReplaceAttr func that redacts sensitive
// values using DefaultRedactOptions plus opts.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
