package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Authenticator provides the middleware protecting controller routes declared
// with authentication enabled.
type Authenticator interface {
	// Middleware either calls c.Next() or aborts the request.
	Middleware() gin.HandlerFunc
}

// UnauthorizedAuthenticator rejects every request. It is used when no other
// authenticator is configured, so protected routes stay closed.
type UnauthorizedAuthenticator struct{}

func (u *UnauthorizedAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func NewUnauthorizedAuthenticator() Authenticator {
	return &UnauthorizedAuthenticator{}
}

// BasicAuthenticator checks HTTP basic credentials against a fixed set of users.
type BasicAuthenticator struct {
	accounts gin.Accounts
	realm    string
}

func NewBasicAuthenticator(cfg BasicAuthConfig) Authenticator {
	accounts := make(gin.Accounts, len(cfg.Users))
	for user, password := range cfg.Users {
		accounts[user] = password
	}
	realm := cfg.Realm
	if realm == "" {
		realm = "sargantana-config"
	}
	return &BasicAuthenticator{accounts: accounts, realm: realm}
}

func (b *BasicAuthenticator) Middleware() gin.HandlerFunc {
	return gin.BasicAuthForRealm(b.accounts, b.realm)
}
