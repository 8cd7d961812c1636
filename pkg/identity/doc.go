// Package identity drives the portal's relationship with its Keycloak
// identity provider: the startup handshake, persistence of the session
// credential pair, the periodic token refresh loop, and the interactive
// login flows used by wlctl. The OIDC/OAuth protocol itself is delegated
// to gocloak, go-oidc and x/oauth2.
package identity
