package service

import (
	"github.com/archonhq/archon/internal/server"
	"github.com/clerk/clerk-sdk-go/v2"
)

// AuthService initializes the Clerk SDK with the configured secret key.
// The actual enforcement lives in middleware; this just makes the SDK's
// package-level client usable.
type AuthService struct {
	server *server.Server
}

func NewAuthService(s *server.Server) *AuthService {
	clerk.SetKey(s.Config.Auth.ClerkSecretKey)
	return &AuthService{
		server: s,
	}
}
