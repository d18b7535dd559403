package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// Profile keys.
const (
	keyAddr      = "addr"
	keyCACert    = "cacert"
	keyInsecure  = "insecure"
	keyPlaintext = "plaintext"
	keyToken     = "token"
	keyExpiresAt = "expires_at"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "watsh")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "watsh")
}

func profilePath(dir string) string { return filepath.Join(dir, "config.yaml") }

// loadProfile reads dir/config.yaml. A missing file yields defaults.
// WATSH_* environment variables override the file.
func loadProfile(dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyAddr, "localhost:8443")
	v.SetConfigFile(profilePath(dir))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("watsh")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

func writeProfile(v *viper.Viper, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := v.WriteConfigAs(profilePath(dir)); err != nil {
		return err
	}
	return os.Chmod(profilePath(dir), 0o600)
}

// saveToken stores tok with the expiry read from its claims.
func saveToken(v *viper.Viper, dir, tok string) error {
	// parse exp from JWT; the server verifies the signature
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tok, &claims)
	if err != nil {
		return err
	}
	exp := time.Now().Add(15 * time.Minute)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	v.Set(keyToken, tok)
	v.Set(keyExpiresAt, exp.UTC().Format(time.RFC3339))
	return writeProfile(v, dir)
}

func clearToken(v *viper.Viper, dir string) error {
	v.Set(keyToken, "")
	v.Set(keyExpiresAt, "")
	return writeProfile(v, dir)
}

func loadToken(v *viper.Viper) (string, error) {
	tok := v.GetString(keyToken)
	if tok == "" {
		return "", errors.New("no token (run signup or accept first)")
	}
	if raw := v.GetString(keyExpiresAt); raw != "" {
		exp, err := time.Parse(time.RFC3339, raw)
		if err == nil && time.Now().After(exp) {
			return "", errors.New("token expired")
		}
	}
	return tok, nil
}
