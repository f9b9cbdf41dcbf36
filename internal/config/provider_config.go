package config

import "errors"

// ProviderConfig describes the third-party identity provider the broker exchanges codes with.
type ProviderConfig interface {
	GetProviderName() string
	GetProviderIssuer() string
	GetProviderClientID() string
	GetProviderClientSecret() string
	GetProviderAuthURL() string
	GetProviderTokenURL() string
	GetProviderUserInfoURL() string
	GetRedirectURI() string
	GetProviderScopes() []string
}

type Provider struct {
	Name         string   `env:"POSTSYNC_PROVIDER_NAME" envDefault:"linkedin"`
	Issuer       string   `env:"POSTSYNC_PROVIDER_ISSUER" envDefault:"https://www.linkedin.com/oauth"`
	ClientID     string   `env:"POSTSYNC_PROVIDER_CLIENT_ID"`
	ClientSecret string   `env:"POSTSYNC_PROVIDER_CLIENT_SECRET"`
	AuthURL      string   `env:"POSTSYNC_PROVIDER_AUTH_URL" envDefault:"https://www.linkedin.com/oauth/v2/authorization"`
	TokenURL     string   `env:"POSTSYNC_PROVIDER_TOKEN_URL" envDefault:"https://www.linkedin.com/oauth/v2/accessToken"`
	UserInfoURL  string   `env:"POSTSYNC_PROVIDER_USERINFO_URL" envDefault:"https://api.linkedin.com/v2/userinfo"`
	RedirectURI  string   `env:"POSTSYNC_REDIRECT_URI" envDefault:"http://localhost:3000/callback"`
	Scopes       []string `env:"POSTSYNC_PROVIDER_SCOPES" envSeparator:" " envDefault:"openid profile email w_member_social"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProviderName() string         { return p.Name }
func (p Provider) GetProviderIssuer() string       { return p.Issuer }
func (p Provider) GetProviderClientID() string     { return p.ClientID }
func (p Provider) GetProviderClientSecret() string { return p.ClientSecret }
func (p Provider) GetProviderAuthURL() string      { return p.AuthURL }
func (p Provider) GetProviderTokenURL() string     { return p.TokenURL }
func (p Provider) GetProviderUserInfoURL() string  { return p.UserInfoURL }
func (p Provider) GetRedirectURI() string          { return p.RedirectURI }

func (p Provider) GetProviderScopes() []string {
	return append([]string(nil), p.Scopes...)
}

func (p Provider) validate() error {
	if p.ClientID == "" {
		return errors.New("[config] POSTSYNC_PROVIDER_CLIENT_ID is required")
	}
	if p.ClientSecret == "" {
		return errors.New("[config] POSTSYNC_PROVIDER_CLIENT_SECRET is required")
	}
	return nil
}
