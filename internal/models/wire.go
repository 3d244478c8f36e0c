package models

import (
	"strings"
	"time"
)

// WireClient is the storage form of a ClientRecord. List-valued fields
// are joined with ListDelimiter into a single string; entries are
// escaped so a delimiter inside an entry survives the round trip.
type WireClient struct {
	ClientID      string    `json:"client_id"`
	Name          string    `json:"client_name"`
	Secret        string    `json:"client_secret,omitempty"`
	RedirectURIs  string    `json:"redirect_uris"`
	GrantTypes    string    `json:"grant_types"`
	ResponseTypes string    `json:"response_types"`
	Audience      string    `json:"audience"`
	Contacts      string    `json:"contacts"`
	Scope         string    `json:"scope"`
	AuthMethod    string    `json:"token_endpoint_auth_method"`
	ClientURI     string    `json:"client_uri,omitempty"`
	LogoURI       string    `json:"logo_uri,omitempty"`
	TOSURI        string    `json:"tos_uri,omitempty"`
	PolicyURI     string    `json:"policy_uri,omitempty"`
	JWKSURI       string    `json:"jwks_uri,omitempty"`
	AllowCORS     bool      `json:"allow_cors_requests"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	entryEscaper   = strings.NewReplacer("%", "%25", ListDelimiter, "%2C")
	entryUnescaper = strings.NewReplacer("%2C", ListDelimiter, "%25", "%")
)

// SplitList parses a delimited wire string into its canonical list.
// Entries are trimmed, unescaped and empty entries dropped.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	list := normalizeList(strings.Split(s, ListDelimiter))
	for i, v := range list {
		list[i] = entryUnescaper.Replace(v)
	}

	return list
}

// JoinList renders a canonical list as its delimited wire string.
// Percent signs and delimiters inside an entry are percent-escaped.
func JoinList(list []string) string {
	escaped := make([]string, len(list))
	for i, v := range list {
		escaped[i] = entryEscaper.Replace(v)
	}

	return strings.Join(escaped, ListDelimiter)
}

// ToWire converts the record into its storage form.
func (c ClientRecord) ToWire() WireClient {
	return WireClient{
		ClientID:      c.ClientID,
		Name:          c.Name,
		Secret:        c.Secret,
		RedirectURIs:  JoinList(c.RedirectURIs),
		GrantTypes:    JoinList(c.GrantTypes),
		ResponseTypes: JoinList(c.ResponseTypes),
		Audience:      JoinList(c.Audience),
		Contacts:      JoinList(c.Contacts),
		Scope:         c.Scope,
		AuthMethod:    string(c.AuthMethod),
		ClientURI:     c.ClientURI,
		LogoURI:       c.LogoURI,
		TOSURI:        c.TOSURI,
		PolicyURI:     c.PolicyURI,
		JWKSURI:       c.JWKSURI,
		AllowCORS:     c.AllowCORS,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// Record converts the storage form back into a canonical record. A
// missing auth method falls back to the default.
func (w WireClient) Record() ClientRecord {
	method := AuthMethod(w.AuthMethod)
	if method == "" {
		method = DefaultAuthMethod
	}

	return ClientRecord{
		ClientID:      w.ClientID,
		Name:          w.Name,
		Secret:        w.Secret,
		RedirectURIs:  SplitList(w.RedirectURIs),
		GrantTypes:    SplitList(w.GrantTypes),
		ResponseTypes: SplitList(w.ResponseTypes),
		Audience:      SplitList(w.Audience),
		Contacts:      SplitList(w.Contacts),
		Scope:         w.Scope,
		AuthMethod:    method,
		ClientURI:     w.ClientURI,
		LogoURI:       w.LogoURI,
		TOSURI:        w.TOSURI,
		PolicyURI:     w.PolicyURI,
		JWKSURI:       w.JWKSURI,
		AllowCORS:     w.AllowCORS,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}
