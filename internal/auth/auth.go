package auth

import "github.com/google/uuid"

// A resolved connection identity.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolver maps a connection's auth token to a user identity. Token
// verification itself lives outside this service; deployments plug in
// whatever their auth stack provides.
type Resolver interface {
	Resolve(token string) (User, bool)
}

// Gate answers workspace membership questions before an edit is allowed
// through. Implementations must be safe for concurrent use.
type Gate interface {
	IsMember(workspaceID, userID string) bool
}

// AllowAll admits everyone. Used when the server runs in anonymous mode.
type AllowAll struct{}

func (AllowAll) IsMember(string, string) bool { return true }

// Anonymous mints a throwaway identity for connections that present no
// usable token.
func Anonymous() User {
	return User{ID: "anon_" + uuid.NewString()[:6], Name: "Anonymous"}
}

// ResolveOrAnonymous resolves the token if possible and falls back to a
// fresh anonymous identity otherwise. A nil resolver means anonymous mode.
func ResolveOrAnonymous(r Resolver, token string) User {
	if r != nil && token != "" {
		if u, ok := r.Resolve(token); ok {
			return u
		}
	}
	return Anonymous()
}

// StaticResolver resolves tokens from a fixed map. Intended for development
// setups and tests.
type StaticResolver map[string]User

func (s StaticResolver) Resolve(token string) (User, bool) {
	u, ok := s[token]
	return u, ok
}
