package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/internsync/internal/domain"
)

// passwordSymbols is the fixed set of symbols accepted by the password policy.
const passwordSymbols = "@$!%*?&"

// Seed account present in every registry.
const (
	SeedUsername = "bob"
	SeedPassword = "bobpass"
	SeedEmail    = "bob@example.com"
)

// CredentialService is the local demo-account registry.
type CredentialService struct {
	users      domain.LocalUserRepository
	bcryptCost int
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(users domain.LocalUserRepository, bcryptCost int) *CredentialService {
	return &CredentialService{users: users, bcryptCost: bcryptCost}
}

// Register validates the inputs and creates a local user. Inputs are trimmed;
// the username check is an exact, case-sensitive match.
func (s *CredentialService) Register(ctx context.Context, username, email, password string) (*domain.LocalUser, error) {
	username, email, password = strings.TrimSpace(username), strings.TrimSpace(email), strings.TrimSpace(password)
	if Blank(username, email, password) {
		return nil, domain.ErrMissingField
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	if !ValidPassword(password) {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.LocalUser{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Favorites:    []domain.FavoriteJobRef{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create local user: %w", err)
	}
	return user, nil
}

// Authenticate checks a username and password against the registry.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (*domain.LocalUser, error) {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if Blank(username, password) {
		return nil, domain.ErrMissingField
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get local user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Lookup returns the registry entry for a username.
func (s *CredentialService) Lookup(ctx context.Context, username string) (*domain.LocalUser, error) {
	return s.users.GetByUsername(ctx, username)
}

// SeedDefault ensures the seed account exists. It bypasses the password
// policy and is safe to call on every start.
func (s *CredentialService) SeedDefault(ctx context.Context) error {
	_, err := s.users.GetByUsername(ctx, SeedUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check seed user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	err = s.users.Create(ctx, &domain.LocalUser{
		Username:     SeedUsername,
		Email:        SeedEmail,
		PasswordHash: string(hash),
	})
	if err != nil && !errors.Is(err, domain.ErrUsernameTaken) {
		return fmt.Errorf("create seed user: %w", err)
	}
	return nil
}

// ValidPassword reports whether password satisfies the policy: at least 8
// characters drawn from letters, digits and passwordSymbols, with at least one
// lowercase letter, uppercase letter, digit and symbol.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r > unicode.MaxASCII:
			return false
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case '0' <= r && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return false
		}
	}
	return lower && upper && digit && symbol
}

// Blank reports whether any of the values is empty after trimming.
func Blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
