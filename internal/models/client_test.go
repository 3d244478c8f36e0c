package models

import (
	"testing"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() ClientRecord {
	return ClientRecord{
		ClientID:      "client-1",
		Name:          "Example",
		Secret:        "s3cret",
		RedirectURIs:  []string{"https://app.example.com/callback", "http://127.0.0.1:8080/cb"},
		GrantTypes:    []string{"authorization_code", "refresh_token"},
		ResponseTypes: []string{"code"},
		Audience:      []string{"https://api.example.com"},
		Contacts:      []string{"ops@example.com"},
		Scope:         "openid offline",
		AuthMethod:    AuthMethodClientSecretPost,
		ClientURI:     "https://example.com",
		AllowCORS:     true,
	}
}

// --- list conversions ---

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,c ", []string{"a", "b", "c"}},
		{"a,,b,", []string{"a", "b"}},
		{",,,", nil},
		{"a%2Cb,c", []string{"a,b", "c"}},
		{"100%25,%252C", []string{"100%", "%2C"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.in), "SplitList(%q)", tt.in)
	}
}

func TestSplitJoin_RoundTrip(t *testing.T) {
	lists := [][]string{
		{"https://a.example.com/cb"},
		{"authorization_code", "refresh_token", "client_credentials"},
		{"x", "y"},
	}
	for _, l := range lists {
		assert.Equal(t, l, SplitList(JoinList(l)))
	}
}

func TestSplitJoin_RoundTripKeepsDelimitersInEntries(t *testing.T) {
	lists := [][]string{
		{"https://a.example.com/cb?x=1,2", "https://b.example.com/cb"},
		{"https://a.example.com/cb?q=a%2Cb", "https://a.example.com/cb?q=100%25"},
		{"Ops, Team <ops@example.com>", "%", ",", "%2C,%25"},
	}
	for _, l := range lists {
		assert.Equal(t, l, SplitList(JoinList(l)), "list %q", l)
	}
	assert.Equal(t, "https://a.example.com/cb?x=1%2C2,https://b.example.com/cb", JoinList(lists[0]))
}

func TestWire_DelimiterInEntryIsLossless(t *testing.T) {
	rec := validRecord()
	rec.RedirectURIs = []string{"https://app.example.com/cb?scopes=a,b"}
	rec.Contacts = []string{"Doe, Jane <jane@example.com>"}
	require.NoError(t, rec.Validate())

	got := rec.ToWire().Record()
	assert.True(t, rec.SameContent(got))
}

func TestSplitJoin_RoundTripDropsEmptyEntries(t *testing.T) {
	l := []string{"a", "", "b", " "}
	assert.Equal(t, []string{"a", "b"}, SplitList(JoinList(l)))
}

func TestJoinSplit_StableUnderReserialization(t *testing.T) {
	for _, s := range []string{"a,b", " a , b ", "a,,b", ""} {
		once := JoinList(SplitList(s))
		twice := JoinList(SplitList(once))
		assert.Equal(t, once, twice, "input %q", s)
	}
}

func TestWire_RoundTrip(t *testing.T) {
	rec := validRecord()
	rec.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.UpdatedAt = rec.CreatedAt.Add(time.Hour)

	w := rec.ToWire()
	assert.Equal(t, "https://app.example.com/callback,http://127.0.0.1:8080/cb", w.RedirectURIs)
	assert.Equal(t, "authorization_code,refresh_token", w.GrantTypes)
	assert.Equal(t, "openid offline", w.Scope)

	assert.Equal(t, rec, w.Record())
}

func TestWire_EmptyAuthMethodDefaults(t *testing.T) {
	rec := WireClient{ClientID: "x", RedirectURIs: "https://a.example.com"}.Record()
	assert.Equal(t, AuthMethodClientSecretBasic, rec.AuthMethod)
	assert.Nil(t, rec.GrantTypes)
}

// --- auth method ---

func TestParseAuthMethod(t *testing.T) {
	m, err := ParseAuthMethod("")
	require.NoError(t, err)
	assert.Equal(t, AuthMethodClientSecretBasic, m)

	for _, s := range []string{"client_secret_basic", "client_secret_post", "private_key_jwt", "none"} {
		m, err := ParseAuthMethod(s)
		require.NoError(t, err)
		assert.Equal(t, AuthMethod(s), m)
	}

	_, err = ParseAuthMethod("tls_client_auth")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// --- normalize / validate ---

func TestNormalize(t *testing.T) {
	rec := ClientRecord{
		Name:         "  App ",
		RedirectURIs: []string{" https://a.example.com/cb ", "", "  "},
		Scope:        "  openid   profile ",
	}
	rec.Normalize()

	assert.Equal(t, "App", rec.Name)
	assert.Equal(t, []string{"https://a.example.com/cb"}, rec.RedirectURIs)
	assert.Equal(t, "openid profile", rec.Scope)
	assert.Equal(t, AuthMethodClientSecretBasic, rec.AuthMethod)
	assert.Equal(t, []string{"openid", "profile"}, rec.ScopeTokens())
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validRecord().Validate())
}

func TestValidate_NativeAppScheme(t *testing.T) {
	rec := validRecord()
	rec.RedirectURIs = []string{"com.example.app:/oauth2redirect"}
	assert.NoError(t, rec.Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := map[string]func(*ClientRecord){
		"no redirect uris":        func(r *ClientRecord) { r.RedirectURIs = nil },
		"relative redirect":       func(r *ClientRecord) { r.RedirectURIs = []string{"/callback"} },
		"https without host":      func(r *ClientRecord) { r.RedirectURIs = []string{"https:///cb"} },
		"fragment":                func(r *ClientRecord) { r.RedirectURIs = []string{"https://a.example.com/cb#frag"} },
		"unknown auth method":     func(r *ClientRecord) { r.AuthMethod = "magic" },
		"relative logo uri":       func(r *ClientRecord) { r.LogoURI = "logo.png" },
		"jwks uri without scheme": func(r *ClientRecord) { r.JWKSURI = "example.com/jwks.json" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			rec := validRecord()
			mutate(&rec)
			assert.ErrorIs(t, rec.Validate(), apperrors.ErrValidation)
		})
	}
}

// --- clone / compare ---

func TestClone_IsDeep(t *testing.T) {
	rec := validRecord()
	cp := rec.Clone()
	cp.RedirectURIs[0] = "https://evil.example.com"
	cp.Audience = append(cp.Audience, "extra")

	assert.Equal(t, "https://app.example.com/callback", rec.RedirectURIs[0])
	assert.Len(t, rec.Audience, 1)
}

func TestSameContent_IgnoresTimestamps(t *testing.T) {
	a := validRecord()
	b := a.Clone()
	b.CreatedAt = time.Now()
	b.UpdatedAt = time.Now()
	assert.True(t, a.SameContent(b))

	b.Scope = "openid"
	assert.False(t, a.SameContent(b))
}

func TestSameContent_NilAndEmptyListsEqual(t *testing.T) {
	a := validRecord()
	b := a.Clone()
	a.Contacts = nil
	b.Contacts = []string{}
	assert.True(t, a.SameContent(b))
}

func TestRedacted(t *testing.T) {
	rec := validRecord()
	assert.Empty(t, rec.Redacted().Secret)
	assert.Equal(t, "s3cret", rec.Secret)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Example (client-1)", validRecord().String())
}

// --- edits ---

func TestEdits_ApplyPartial(t *testing.T) {
	rec := validRecord()
	name := "Renamed"
	uris := []string{" https://new.example.com/cb ", ""}
	cors := false

	out := ClientEdits{Name: &name, RedirectURIs: &uris, AllowCORS: &cors}.Apply(rec)

	assert.Equal(t, "Renamed", out.Name)
	assert.Equal(t, []string{"https://new.example.com/cb"}, out.RedirectURIs)
	assert.False(t, out.AllowCORS)
	assert.Equal(t, rec.Scope, out.Scope)
	assert.Equal(t, rec.ClientID, out.ClientID)

	// The source record is untouched.
	assert.Equal(t, "Example", rec.Name)
	assert.True(t, rec.AllowCORS)
}

func TestEdits_ApplyEmptyIsIdentity(t *testing.T) {
	rec := validRecord()
	out := ClientEdits{}.Apply(rec)
	assert.True(t, rec.SameContent(out))
}
