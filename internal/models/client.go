// Package models defines types shared across internal packages.
package models

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
)

// ListDelimiter separates entries of list-valued fields in their wire form.
const ListDelimiter = ","

// AuthMethod is the token endpoint authentication method of a client.
type AuthMethod string

const (
	AuthMethodClientSecretBasic AuthMethod = "client_secret_basic"
	AuthMethodClientSecretPost  AuthMethod = "client_secret_post"
	AuthMethodPrivateKeyJWT     AuthMethod = "private_key_jwt"
	AuthMethodNone              AuthMethod = "none"
)

// DefaultAuthMethod is applied when a record carries no method.
const DefaultAuthMethod = AuthMethodClientSecretBasic

// Valid reports whether m is one of the supported methods.
func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodPrivateKeyJWT, AuthMethodNone:
		return true
	}

	return false
}

// ParseAuthMethod converts s into an AuthMethod. Empty input yields the
// default method.
func ParseAuthMethod(s string) (AuthMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAuthMethod, nil
	}

	m := AuthMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: unsupported token_endpoint_auth_method %q", apperrors.ErrValidation, s)
	}

	return m, nil
}

// ClientRecord is the canonical form of a registered OAuth2 client.
// List-valued fields hold trimmed, non-empty entries.
type ClientRecord struct {
	ClientID      string     `json:"client_id" yaml:"client_id"`
	Name          string     `json:"client_name" yaml:"client_name"`
	Secret        string     `json:"client_secret,omitempty" yaml:"-"`
	RedirectURIs  []string   `json:"redirect_uris" yaml:"redirect_uris"`
	GrantTypes    []string   `json:"grant_types" yaml:"grant_types,omitempty"`
	ResponseTypes []string   `json:"response_types" yaml:"response_types,omitempty"`
	Audience      []string   `json:"audience" yaml:"audience,omitempty"`
	Contacts      []string   `json:"contacts" yaml:"contacts,omitempty"`
	Scope         string     `json:"scope" yaml:"scope,omitempty"`
	AuthMethod    AuthMethod `json:"token_endpoint_auth_method" yaml:"token_endpoint_auth_method"`
	ClientURI     string     `json:"client_uri,omitempty" yaml:"client_uri,omitempty"`
	LogoURI       string     `json:"logo_uri,omitempty" yaml:"logo_uri,omitempty"`
	TOSURI        string     `json:"tos_uri,omitempty" yaml:"tos_uri,omitempty"`
	PolicyURI     string     `json:"policy_uri,omitempty" yaml:"policy_uri,omitempty"`
	JWKSURI       string     `json:"jwks_uri,omitempty" yaml:"jwks_uri,omitempty"`
	AllowCORS     bool       `json:"allow_cors_requests" yaml:"allow_cors_requests"`
	CreatedAt     time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"updated_at"`
}

// String returns "name (id)" for log and message output.
func (c ClientRecord) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ClientID)
}

// Normalize trims list entries, drops empty ones, collapses the scope
// whitespace and applies the default auth method.
func (c *ClientRecord) Normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.Name = strings.TrimSpace(c.Name)
	c.RedirectURIs = normalizeList(c.RedirectURIs)
	c.GrantTypes = normalizeList(c.GrantTypes)
	c.ResponseTypes = normalizeList(c.ResponseTypes)
	c.Audience = normalizeList(c.Audience)
	c.Contacts = normalizeList(c.Contacts)
	c.Scope = strings.Join(strings.Fields(c.Scope), " ")
	c.ClientURI = strings.TrimSpace(c.ClientURI)
	c.LogoURI = strings.TrimSpace(c.LogoURI)
	c.TOSURI = strings.TrimSpace(c.TOSURI)
	c.PolicyURI = strings.TrimSpace(c.PolicyURI)
	c.JWKSURI = strings.TrimSpace(c.JWKSURI)

	if c.AuthMethod == "" {
		c.AuthMethod = DefaultAuthMethod
	}
}

// Validate checks the record can be submitted to the authorization
// server. All failures wrap ErrValidation.
func (c ClientRecord) Validate() error {
	if len(c.RedirectURIs) == 0 {
		return fmt.Errorf("%w: at least one redirect URI is required", apperrors.ErrValidation)
	}

	for _, uri := range c.RedirectURIs {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme == "" || (isWebScheme(u.Scheme) && u.Host == "") {
			return fmt.Errorf("%w: redirect URI %q is not an absolute URI", apperrors.ErrValidation, uri)
		}

		if u.Fragment != "" {
			return fmt.Errorf("%w: redirect URI %q must not contain a fragment", apperrors.ErrValidation, uri)
		}
	}

	if c.AuthMethod != "" && !c.AuthMethod.Valid() {
		return fmt.Errorf("%w: unsupported token_endpoint_auth_method %q", apperrors.ErrValidation, c.AuthMethod)
	}

	optional := []struct{ field, value string }{
		{"client_uri", c.ClientURI},
		{"logo_uri", c.LogoURI},
		{"tos_uri", c.TOSURI},
		{"policy_uri", c.PolicyURI},
		{"jwks_uri", c.JWKSURI},
	}
	for _, o := range optional {
		if o.value == "" {
			continue
		}

		u, err := url.Parse(o.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", apperrors.ErrValidation, o.field, o.value)
		}
	}

	return nil
}

// ScopeTokens splits the scope string into its tokens.
func (c ClientRecord) ScopeTokens() []string {
	return strings.Fields(c.Scope)
}

// Clone returns a deep copy of the record.
func (c ClientRecord) Clone() ClientRecord {
	out := c
	out.RedirectURIs = slices.Clone(c.RedirectURIs)
	out.GrantTypes = slices.Clone(c.GrantTypes)
	out.ResponseTypes = slices.Clone(c.ResponseTypes)
	out.Audience = slices.Clone(c.Audience)
	out.Contacts = slices.Clone(c.Contacts)

	return out
}

// Redacted returns a copy with the secret cleared.
func (c ClientRecord) Redacted() ClientRecord {
	out := c.Clone()
	out.Secret = ""

	return out
}

// SameContent reports whether both records carry identical client
// attributes. Timestamps are ignored.
func (c ClientRecord) SameContent(o ClientRecord) bool {
	return c.ClientID == o.ClientID &&
		c.Name == o.Name &&
		c.Secret == o.Secret &&
		slices.Equal(c.RedirectURIs, o.RedirectURIs) &&
		slices.Equal(c.GrantTypes, o.GrantTypes) &&
		slices.Equal(c.ResponseTypes, o.ResponseTypes) &&
		slices.Equal(c.Audience, o.Audience) &&
		slices.Equal(c.Contacts, o.Contacts) &&
		c.Scope == o.Scope &&
		c.AuthMethod == o.AuthMethod &&
		c.ClientURI == o.ClientURI &&
		c.LogoURI == o.LogoURI &&
		c.TOSURI == o.TOSURI &&
		c.PolicyURI == o.PolicyURI &&
		c.JWKSURI == o.JWKSURI &&
		c.AllowCORS == o.AllowCORS
}

// ClientEdits holds a partial update. Nil fields leave the target
// unchanged. The client ID is not editable.
type ClientEdits struct {
	Name          *string     `json:"client_name,omitempty"`
	Secret        *string     `json:"client_secret,omitempty"`
	RedirectURIs  *[]string   `json:"redirect_uris,omitempty"`
	GrantTypes    *[]string   `json:"grant_types,omitempty"`
	ResponseTypes *[]string   `json:"response_types,omitempty"`
	Audience      *[]string   `json:"audience,omitempty"`
	Contacts      *[]string   `json:"contacts,omitempty"`
	Scope         *string     `json:"scope,omitempty"`
	AuthMethod    *AuthMethod `json:"token_endpoint_auth_method,omitempty"`
	ClientURI     *string     `json:"client_uri,omitempty"`
	LogoURI       *string     `json:"logo_uri,omitempty"`
	TOSURI        *string     `json:"tos_uri,omitempty"`
	PolicyURI     *string     `json:"policy_uri,omitempty"`
	JWKSURI       *string     `json:"jwks_uri,omitempty"`
	AllowCORS     *bool       `json:"allow_cors_requests,omitempty"`
}

// Apply returns a normalized copy of rec with the edits merged in. rec
// itself is not modified.
func (e ClientEdits) Apply(rec ClientRecord) ClientRecord {
	out := rec.Clone()

	setString(&out.Name, e.Name)
	setString(&out.Secret, e.Secret)
	setString(&out.Scope, e.Scope)
	setString(&out.ClientURI, e.ClientURI)
	setString(&out.LogoURI, e.LogoURI)
	setString(&out.TOSURI, e.TOSURI)
	setString(&out.PolicyURI, e.PolicyURI)
	setString(&out.JWKSURI, e.JWKSURI)
	setList(&out.RedirectURIs, e.RedirectURIs)
	setList(&out.GrantTypes, e.GrantTypes)
	setList(&out.ResponseTypes, e.ResponseTypes)
	setList(&out.Audience, e.Audience)
	setList(&out.Contacts, e.Contacts)

	if e.AuthMethod != nil {
		out.AuthMethod = *e.AuthMethod
	}

	if e.AllowCORS != nil {
		out.AllowCORS = *e.AllowCORS
	}

	out.Normalize()

	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *[]string, v *[]string) {
	if v != nil {
		*dst = slices.Clone(*v)
	}
}

func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func normalizeList(in []string) []string {
	var out []string

	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}

	return out
}
