package gotrue

import (
	"net/url"
	"strings"
)

// ProviderOptions tune the external provider redirect URL.
type ProviderOptions struct {
	RedirectTo string
	Scopes     []string
}

// URLForProvider returns the URL that starts an external OAuth login with provider.
func (c *Client) URLForProvider(provider string) string {
	return c.URLForProviderWith(provider, ProviderOptions{})
}

// URLForProviderWith is URLForProvider with a redirect target and extra scopes.
// provider always comes first in the query string.
func (c *Client) URLForProviderWith(provider string, opts ProviderOptions) string {
	var b strings.Builder
	b.WriteString(c.endpoint("/authorize", nil))
	b.WriteString("?provider=")
	b.WriteString(url.QueryEscape(provider))

	if opts.RedirectTo != "" {
		b.WriteString("&redirect_to=")
		b.WriteString(url.QueryEscape(opts.RedirectTo))
	}
	if len(opts.Scopes) > 0 {
		b.WriteString("&scopes=")
		b.WriteString(url.QueryEscape(strings.Join(opts.Scopes, " ")))
	}
	return b.String()
}
