package api

import "fmt"

// Identity is one way of talking to GitHub: a logged-in token or the
// anonymous fallback.
type Identity struct {
	Name      string
	Client    Client
	Anonymous bool
}

// Provider supplies the identities a batch may use, in preference order.
type Provider interface {
	// Identities returns the logged-in identities.
	Identities() []Identity
	// Fallback returns the unauthenticated identity, if one is configured.
	Fallback() (Identity, bool)
}

// StaticProvider is a Provider over a fixed identity list
type StaticProvider struct {
	identities []Identity
	fallback   *Identity
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider. fallback may be nil.
func NewStaticProvider(identities []Identity, fallback *Identity) *StaticProvider {
	return &StaticProvider{identities: identities, fallback: fallback}
}

// NewTokenProvider builds a provider with one identity per token. When
// anonymous is set an unauthenticated client is offered as the fallback.
func NewTokenProvider(tokens []string, anonymous bool) *StaticProvider {
	var identities []Identity
	for i, token := range tokens {
		identities = append(identities, Identity{
			Name:   tokenName(i),
			Client: NewGitHubClient(token),
		})
	}

	var fallback *Identity
	if anonymous {
		fallback = &Identity{Name: "anonymous", Client: NewGitHubClient(""), Anonymous: true}
	}
	return NewStaticProvider(identities, fallback)
}

func tokenName(i int) string {
	return fmt.Sprintf("token-%d", i+1)
}

// Identities returns the logged-in identities
func (p *StaticProvider) Identities() []Identity {
	return p.identities
}

// Fallback returns the anonymous identity when configured
func (p *StaticProvider) Fallback() (Identity, bool) {
	if p.fallback == nil {
		return Identity{}, false
	}
	return *p.fallback, true
}

// Rename replaces the display name of the identity at index i, e.g. with the
// login resolved through GraphQLClient.Viewer.
func (p *StaticProvider) Rename(i int, name string) {
	if i >= 0 && i < len(p.identities) && name != "" {
		p.identities[i].Name = name
	}
}

// Candidates returns the identities to try for one batch: the logged-in
// identities followed by the fallback when one exists.
func Candidates(p Provider) []Identity {
	out := append([]Identity(nil), p.Identities()...)
	if fb, ok := p.Fallback(); ok {
		out = append(out, fb)
	}
	return out
}
