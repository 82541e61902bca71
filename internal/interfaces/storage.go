package interfaces

import (
	"context"

	"github.com/bobmcallan/surveylens/internal/models"
)

// Tokens is the stored token pair. Empty strings mean absent.
type Tokens struct {
	Access  string
	Refresh string
}

// CredentialProvider holds the session shared by every backend call.
// Implementations must be safe for concurrent use.
type CredentialProvider interface {
	Tokens() Tokens
	SetTokens(access, refresh string) error
	User() *models.User
	SetUser(user *models.User) error

	// Clear removes tokens and user
	Clear() error
}

// ExportSink stores rendered exports
type ExportSink interface {
	// Put writes data under name and returns where it landed (a path or URL)
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}
