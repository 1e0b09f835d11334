// Package apikey mints API keys. The raw key is returned once; only its
// bcrypt hash and lookup prefix are kept.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/api/middleware"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const rawPrefix = "bb_"

var validScopes = map[string]bool{
	models.ScopeSubmit: true,
	models.ScopeRead:   true,
	models.ScopeAdmin:  true,
}

// ErrInvalidScope is returned for scopes other than submit, read and admin.
var ErrInvalidScope = errors.New("invalid scope")

// Generate creates a new key called name with the given scopes. It returns the
// raw key for the caller to hand out and the record to store.
func Generate(name string, scopes []string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, errors.New("key name required")
	}
	if len(scopes) == 0 {
		return "", nil, fmt.Errorf("%w: at least one scope required", ErrInvalidScope)
	}
	seen := make(map[string]bool, len(scopes))
	clean := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if !validScopes[s] {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
		if !seen[s] {
			seen[s] = true
			clean = append(clean, s)
		}
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("read random: %w", err)
	}
	raw := rawPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:middleware.KeyPrefixLen],
		Scopes:    clean,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
