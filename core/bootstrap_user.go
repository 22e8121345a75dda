package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
)

// BootstrapUser creates an initial dashboard user when the users table is empty.
// It is idempotent: if any user exists, it does nothing.
func BootstrapUser(ctx context.Context, repo UserRepository, cfg Config) error {
	if !cfg.BootstrapUserEnabled {
		return nil
	}

	has, err := repo.HasAny(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(24)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return err
	}
	if _, err := repo.Create(ctx, "Dashboard User", cfg.InitialUserEmail, hash); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil
		}
		return err
	}

	if cfg.InitialUserPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialUserPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		log.Printf("initial user %s created; password written to %s", cfg.InitialUserEmail, cfg.InitialUserPasswordPath)
	} else {
		log.Printf("initial user created email=%s password=%s", cfg.InitialUserEmail, password)
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
