// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity represents the authenticated operator's identity.
// Handlers read it instead of touching raw gin context keys.
type Identity interface {
	// Subject returns the token subject.
	Subject() string
	// Actor returns the name recorded on status log entries and findings.
	Actor() string
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	subject       string
	email         string
	roles         []string
	authenticated bool
}

func (i *identity) Subject() string { return i.subject }

func (i *identity) Actor() string {
	if i.email != "" {
		return i.email
	}
	return i.subject
}

func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	subject := c.GetString(ContextSubjectKey)
	if subject == "" {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return &identity{
		subject:       subject,
		email:         c.GetString(ContextEmailKey),
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
