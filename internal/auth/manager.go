package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/goccy/go-json"
	"github.com/zalando/go-keyring"
)

const (
	serviceName      = "ghmirror"
	profilesFileName = "profiles.json"
)

// TokenSource says where a resolved token came from
type TokenSource string

const (
	SourceFlag    TokenSource = "flag"
	SourceEnv     TokenSource = "env"
	SourceStorage TokenSource = "storage"
	SourceNone    TokenSource = "none"
)

// StoredToken is the record kept per profile
type StoredToken struct {
	Profile   string    `json:"profile"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager stores GitHub tokens per profile and resolves the token a command should use
type Manager struct {
	configDir      string
	useKeyring     bool
	storage        StorageBackend
	storageWarning string
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool
}

// NewManager creates a new auth manager
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		configDir: configDir,
	}

	if opts.ForceEncryptedFile || !checkKeyringAvailable() {
		storage, err := NewEncryptedFileStorage(configDir)
		if err != nil {
			mgr.storage = unavailableStorage{err: err}
			mgr.storageWarning = fmt.Sprintf("WARNING: token storage unavailable (%v). Use --token or %s.", err, utils.GitHubTokenEnv)
		} else {
			mgr.storage = storage
			if !opts.ForceEncryptedFile {
				mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
			}
		}
		return mgr
	}

	mgr.storage = NewKeyringStorage(serviceName)
	mgr.useKeyring = true
	return mgr
}

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	testKey := serviceName + "-probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SaveToken stores a token for a profile
func (m *Manager) SaveToken(profile, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	data, err := json.Marshal(StoredToken{Profile: profile, Token: token, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := m.storage.Save(profile, data); err != nil {
		return err
	}
	return m.addProfileToList(profile)
}

// LoadToken returns the stored token for a profile, or ErrNoToken
func (m *Manager) LoadToken(profile string) (*StoredToken, error) {
	data, err := m.storage.Load(profile)
	if err != nil {
		return nil, err
	}
	var stored StoredToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse stored token: %w", err)
	}
	return &stored, nil
}

// DeleteToken removes the stored token for a profile
func (m *Manager) DeleteToken(profile string) error {
	if err := m.storage.Delete(profile); err != nil {
		return err
	}
	return m.removeProfileFromList(profile)
}

// ResolveToken picks the token for a request: explicit flag, then GITHUB_TOKEN, then the
// stored profile. An empty token with SourceNone means anonymous access.
func (m *Manager) ResolveToken(flagToken, profile string) (string, TokenSource, error) {
	if t := strings.TrimSpace(flagToken); t != "" {
		return t, SourceFlag, nil
	}
	if t := strings.TrimSpace(os.Getenv(utils.GitHubTokenEnv)); t != "" {
		return t, SourceEnv, nil
	}
	stored, err := m.LoadToken(profile)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", SourceNone, nil
		}
		return "", SourceNone, err
	}
	return stored.Token, SourceStorage, nil
}

// ListProfiles lists all profiles with a stored token
func (m *Manager) ListProfiles() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(m.configDir, profilesFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	var profiles []string
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (m *Manager) addProfileToList(profile string) error {
	profiles, err := m.ListProfiles()
	if err != nil {
		return err
	}
	if slices.Contains(profiles, profile) {
		return nil
	}
	profiles = append(profiles, profile)
	slices.Sort(profiles)
	return m.writeProfiles(profiles)
}

func (m *Manager) removeProfileFromList(profile string) error {
	profiles, err := m.ListProfiles()
	if err != nil {
		return err
	}
	return m.writeProfiles(slices.DeleteFunc(profiles, func(p string) bool { return p == profile }))
}

func (m *Manager) writeProfiles(profiles []string) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.configDir, profilesFileName), data, 0600)
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}

// MaskToken keeps a token recognizable without revealing it
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

type unavailableStorage struct {
	err error
}

func (u unavailableStorage) Save(string, []byte) error { return u.err }
func (u unavailableStorage) Load(profile string) ([]byte, error) {
	return nil, fmt.Errorf("%w for profile '%s'", ErrNoToken, profile)
}
func (u unavailableStorage) Delete(string) error { return u.err }
func (u unavailableStorage) Name() string        { return "unavailable" }
