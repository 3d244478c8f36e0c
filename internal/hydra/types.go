package hydra

import (
	"encoding/json"
	"time"

	"github.com/alexjbarnes/hydra-login/internal/models"
	"github.com/tidwall/gjson"
)

// OAuth2Client is the client representation used by the Hydra admin API.
type OAuth2Client struct {
	ClientID                string          `json:"client_id,omitempty"`
	ClientName              string          `json:"client_name,omitempty"`
	ClientSecret            string          `json:"client_secret,omitempty"`
	RedirectURIs            []string        `json:"redirect_uris"`
	GrantTypes              []string        `json:"grant_types"`
	ResponseTypes           []string        `json:"response_types"`
	Scope                   string          `json:"scope"`
	Audience                []string        `json:"audience"`
	TokenEndpointAuthMethod string          `json:"token_endpoint_auth_method,omitempty"`
	ClientURI               string          `json:"client_uri,omitempty"`
	LogoURI                 string          `json:"logo_uri,omitempty"`
	Contacts                []string        `json:"contacts"`
	TOSURI                  string          `json:"tos_uri,omitempty"`
	PolicyURI               string          `json:"policy_uri,omitempty"`
	JWKSURI                 string          `json:"jwks_uri,omitempty"`
	Metadata                json.RawMessage `json:"metadata,omitempty"`
	CreatedAt               *time.Time      `json:"created_at,omitempty"`
	UpdatedAt               *time.Time      `json:"updated_at,omitempty"`
}

// metaAllowCORS is the metadata key carrying ClientRecord.AllowCORS.
// Hydra has no first-class field for it, so it travels in metadata.
const metaAllowCORS = "allow_cors_requests"

// Record converts the Hydra client into a normalized ClientRecord.
// Timestamps are left zero; they are assigned by the local registry.
func (c OAuth2Client) Record() models.ClientRecord {
	rec := models.ClientRecord{
		ClientID:      c.ClientID,
		Name:          c.ClientName,
		Secret:        c.ClientSecret,
		RedirectURIs:  c.RedirectURIs,
		GrantTypes:    c.GrantTypes,
		ResponseTypes: c.ResponseTypes,
		Audience:      c.Audience,
		Contacts:      c.Contacts,
		Scope:         c.Scope,
		AuthMethod:    models.AuthMethod(c.TokenEndpointAuthMethod),
		ClientURI:     c.ClientURI,
		LogoURI:       c.LogoURI,
		TOSURI:        c.TOSURI,
		PolicyURI:     c.PolicyURI,
		JWKSURI:       c.JWKSURI,
	}

	if len(c.Metadata) > 0 {
		rec.AllowCORS = gjson.GetBytes(c.Metadata, metaAllowCORS).Bool()
	}

	rec.Normalize()

	return rec
}

// clientFromRecord builds the Hydra payload for rec. Nil lists are sent
// as empty arrays.
func clientFromRecord(rec models.ClientRecord) OAuth2Client {
	meta, _ := json.Marshal(map[string]bool{metaAllowCORS: rec.AllowCORS})

	method := rec.AuthMethod
	if method == "" {
		method = models.DefaultAuthMethod
	}

	return OAuth2Client{
		ClientID:                rec.ClientID,
		ClientName:              rec.Name,
		ClientSecret:            rec.Secret,
		RedirectURIs:            nonNil(rec.RedirectURIs),
		GrantTypes:              nonNil(rec.GrantTypes),
		ResponseTypes:           nonNil(rec.ResponseTypes),
		Scope:                   rec.Scope,
		Audience:                nonNil(rec.Audience),
		TokenEndpointAuthMethod: string(method),
		ClientURI:               rec.ClientURI,
		LogoURI:                 rec.LogoURI,
		Contacts:                nonNil(rec.Contacts),
		TOSURI:                  rec.TOSURI,
		PolicyURI:               rec.PolicyURI,
		JWKSURI:                 rec.JWKSURI,
		Metadata:                meta,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

// LoginRequest is the login challenge context returned by Hydra.
type LoginRequest struct {
	Challenge         string       `json:"challenge"`
	Skip              bool         `json:"skip"`
	Subject           string       `json:"subject"`
	Client            OAuth2Client `json:"client"`
	RequestURL        string       `json:"request_url"`
	RequestedScope    []string     `json:"requested_scope"`
	RequestedAudience []string     `json:"requested_access_token_audience"`
	SessionID         string       `json:"session_id,omitempty"`
}

// ConsentRequest is the consent challenge context returned by Hydra.
type ConsentRequest struct {
	Challenge         string       `json:"challenge"`
	Skip              bool         `json:"skip"`
	Subject           string       `json:"subject"`
	Client            OAuth2Client `json:"client"`
	RequestURL        string       `json:"request_url"`
	RequestedScope    []string     `json:"requested_scope"`
	RequestedAudience []string     `json:"requested_access_token_audience"`
	LoginChallenge    string       `json:"login_challenge,omitempty"`
	LoginSessionID    string       `json:"login_session_id,omitempty"`
}

// LogoutRequest is the logout challenge context returned by Hydra.
type LogoutRequest struct {
	Challenge   string `json:"challenge,omitempty"`
	Subject     string `json:"subject"`
	SessionID   string `json:"sid"`
	RequestURL  string `json:"request_url"`
	RPInitiated bool   `json:"rp_initiated"`
}

// Redirect is the completion response of every accept and reject call.
type Redirect struct {
	RedirectTo string `json:"redirect_to"`
}

type acceptLoginBody struct {
	Subject     string `json:"subject"`
	Remember    bool   `json:"remember"`
	RememberFor int64  `json:"remember_for"`
}

type acceptConsentBody struct {
	GrantScope    []string `json:"grant_scope"`
	GrantAudience []string `json:"grant_access_token_audience"`
	Remember      bool     `json:"remember"`
	RememberFor   int64    `json:"remember_for"`
}

type rejectBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
