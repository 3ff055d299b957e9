package server

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// SecurityConfig enables the secure middleware. Unset fields keep the middleware
// behavior off.
type SecurityConfig struct {
	AllowedHosts          []string          `yaml:"allowed_hosts,omitempty" json:"allowed_hosts,omitempty" toml:"allowed_hosts,omitempty"`
	SSLRedirect           bool              `yaml:"ssl_redirect,omitempty" json:"ssl_redirect,omitempty" toml:"ssl_redirect,omitempty"`
	SSLHost               string            `yaml:"ssl_host,omitempty" json:"ssl_host,omitempty" toml:"ssl_host,omitempty"`
	SSLProxyHeaders       map[string]string `yaml:"ssl_proxy_headers,omitempty" json:"ssl_proxy_headers,omitempty" toml:"ssl_proxy_headers,omitempty"`
	STSSeconds            int64             `yaml:"sts_seconds,omitempty" json:"sts_seconds,omitempty" toml:"sts_seconds,omitempty"`
	STSIncludeSubdomains  bool              `yaml:"sts_include_subdomains,omitempty" json:"sts_include_subdomains,omitempty" toml:"sts_include_subdomains,omitempty"`
	FrameDeny             bool              `yaml:"frame_deny,omitempty" json:"frame_deny,omitempty" toml:"frame_deny,omitempty"`
	ContentTypeNosniff    bool              `yaml:"content_type_nosniff,omitempty" json:"content_type_nosniff,omitempty" toml:"content_type_nosniff,omitempty"`
	ContentSecurityPolicy string            `yaml:"content_security_policy,omitempty" json:"content_security_policy,omitempty" toml:"content_security_policy,omitempty"`
	ReferrerPolicy        string            `yaml:"referrer_policy,omitempty" json:"referrer_policy,omitempty" toml:"referrer_policy,omitempty"`
}

// Middleware builds the secure handler. In development mode host and SSL checks
// are skipped so the server can be tried on localhost.
func (s SecurityConfig) Middleware(development bool) gin.HandlerFunc {
	return secure.New(secure.Config{
		AllowedHosts:          s.AllowedHosts,
		SSLRedirect:           s.SSLRedirect,
		SSLHost:               s.SSLHost,
		SSLProxyHeaders:       s.SSLProxyHeaders,
		STSSeconds:            s.STSSeconds,
		STSIncludeSubdomains:  s.STSIncludeSubdomains,
		FrameDeny:             s.FrameDeny,
		ContentTypeNosniff:    s.ContentTypeNosniff,
		ContentSecurityPolicy: s.ContentSecurityPolicy,
		ReferrerPolicy:        s.ReferrerPolicy,
		IsDevelopment:         development,
	})
}
