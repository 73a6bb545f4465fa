package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"polychat/internal/prefs"
)

const credentialService = "polychat"

var (
	credentialFileMu sync.Mutex
	keyringGet       = keyring.Get
	keyringSet       = keyring.Set
	keyringDelete    = keyring.Delete
	userHomeDir      = os.UserHomeDir
)

func ValidateCredential(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("credential is empty")
	}
	return nil
}

// StoreCredential saves an API key for a provider id, preferring the OS
// keyring and falling back to a 0600 JSON file when no keyring is available.
func StoreCredential(providerID, key string) error {
	providerID = strings.TrimSpace(providerID)
	key = strings.TrimSpace(key)
	if providerID == "" {
		return errors.New("provider id is empty")
	}
	if err := ValidateCredential(key); err != nil {
		return err
	}

	if err := keyringSet(credentialService, providerID, key); err == nil {
		return nil
	}

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return err
	}
	entries[providerID] = key
	return writeCredentialFileUnlocked(entries)
}

// LoadCredential returns the stored API key for a provider id.
func LoadCredential(providerID string) (string, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return "", errors.New("provider id is empty")
	}

	if key, err := keyringGet(credentialService, providerID); err == nil {
		key = strings.TrimSpace(key)
		if key != "" {
			return key, nil
		}
	}

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(entries[providerID])
	if key == "" {
		return "", ErrCredentialNotFound
	}
	return key, nil
}

// DeleteCredential removes a provider's key from both backends.
func DeleteCredential(providerID string) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return errors.New("provider id is empty")
	}
	_ = keyringDelete(credentialService, providerID)

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return err
	}
	if _, ok := entries[providerID]; !ok {
		return nil
	}
	delete(entries, providerID)
	return writeCredentialFileUnlocked(entries)
}

// ResolveKey is the key lookup order for a configured provider: an explicit
// key in the preferences wins, otherwise the credential store is consulted.
func ResolveKey(pp prefs.ProviderPrefs) string {
	if key := strings.TrimSpace(pp.APIKey); key != "" {
		return key
	}
	key, err := LoadCredential(pp.ID)
	if err != nil {
		return ""
	}
	return key
}

// HasKey adapts ResolveKey for prefs.EnabledProviders.
func HasKey(pp prefs.ProviderPrefs) bool {
	return ResolveKey(pp) != ""
}

func credentialFilePath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	home = strings.TrimSpace(home)
	if home == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(home, ".polychat", "credentials.json"), nil
}

func readCredentialFileUnlocked() (map[string]string, error) {
	path, err := credentialFilePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return map[string]string{}, nil
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	clean := make(map[string]string, len(entries))
	for k, v := range entries {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	return clean, nil
}

func writeCredentialFileUnlocked(entries map[string]string) error {
	path, err := credentialFilePath()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]string{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("write credential temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("set credential file permissions: %w", err)
	}
	return nil
}
