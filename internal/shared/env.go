package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// GeniusTokenEnv is the environment variable holding the Genius client access token.
const GeniusTokenEnv = "GENIUS_API_TOKEN"

// LoadEnv loads .env style files into the process environment without overriding variables that are already set.
//
// Missing files are ignored.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// ResolveGeniusToken returns the access token from the environment, falling back to the config file.
func ResolveGeniusToken(config *Config) (string, error) {
	if token := strings.TrimSpace(os.Getenv(GeniusTokenEnv)); token != "" {
		return token, nil
	}
	if config != nil {
		if token := strings.TrimSpace(config.Credentials.Genius.AccessToken); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: set %s or credentials.genius.access_token", ErrMissingCredentials, GeniusTokenEnv)
}

// SaveEnvValue sets key to value in the .env file at path, keeping any other entries.
func SaveEnvValue(path, key, value string) error {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		env = existing
	}
	env[key] = value

	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode env file: %w", err)
	}

	return WriteFileAtomic(path, []byte(content+"\n"), 0600)
}
