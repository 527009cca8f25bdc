// Package keyring provides secure credential storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/vpn-launcher/common"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound = common.ErrCredentialsNotFound
	ErrEmptyKey = errors.New("profile ID cannot be empty")
)

const keyInfo = "vpn-launcher local credential store v1"

// Store keeps one password per profile.
type Store struct {
	service string
	dir     string

	once     sync.Once
	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	file     string
	key      []byte
}

// New returns a store for service. dir holds the encrypted fallback file.
func New(service, dir string) *Store {
	return &Store{service: service, dir: dir}
}

// Default returns the application store.
func Default() (*Store, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return New(common.CommandName, dir), nil
}

// init picks the backend on first use. The system keyring is preferred.
func (s *Store) init() {
	s.once.Do(func() {
		probe := s.service + "-probe"
		if err := keyring.Set(s.service, probe, "probe"); err == nil {
			keyring.Delete(s.service, probe)
			return
		}
		common.LogDebug("System keyring unavailable, using local credential store")
		s.initLocal()
	})
}

func (s *Store) initLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local != nil {
		s.useLocal = true
		return
	}

	s.useLocal = true
	s.file = filepath.Join(s.dir, common.CredentialsFileName)
	s.key = deriveKey(s.service)
	s.local = make(map[string]string)

	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}
	plain, err := s.decrypt(data)
	if err != nil {
		common.LogWarn("Ignoring unreadable credential store %s: %v", s.file, err)
		return
	}
	json.Unmarshal(plain, &s.local)
}

// deriveKey derives the local store key from machine-specific data.
func deriveKey(service string) []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%d", hostname, machineID(), os.Getuid())

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(service), []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		panic(err)
	}
	return key
}

func machineID() string {
	for _, p := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(p); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return "default-machine-id"
}

// saveLocal persists the local map. Callers hold s.mu.
func (s *Store) saveLocal() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}
	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}
	if err := common.EnsureDir(s.dir); err != nil {
		return err
	}
	return os.WriteFile(s.file, encrypted, 0600)
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Store) usingLocal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}

// Set saves a password for a profile.
func (s *Store) Set(profileID, password string) error {
	if profileID == "" {
		return ErrEmptyKey
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	s.init()

	if !s.usingLocal() {
		err := keyring.Set(s.service, profileID, password)
		if err == nil {
			return nil
		}
		common.LogWarn("System keyring rejected credential, using local store: %v", err)
		s.initLocal()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[profileID] = password
	return s.saveLocal()
}

// Get retrieves the password for a profile.
func (s *Store) Get(profileID string) (string, error) {
	if profileID == "" {
		return "", ErrEmptyKey
	}
	s.init()

	if !s.usingLocal() {
		password, err := keyring.Get(s.service, profileID)
		if err == nil {
			return password, nil
		}
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, profileID)
		}
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	password, ok := s.local[profileID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, profileID)
	}
	return password, nil
}

// Delete removes the password for a profile. Deleting a missing entry is
// not an error.
func (s *Store) Delete(profileID string) error {
	if profileID == "" {
		return ErrEmptyKey
	}
	s.init()

	if !s.usingLocal() {
		if err := keyring.Delete(s.service, profileID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[profileID]; !ok {
		return nil
	}
	delete(s.local, profileID)
	return s.saveLocal()
}

// Exists checks if a credential exists for a profile.
func (s *Store) Exists(profileID string) bool {
	_, err := s.Get(profileID)
	return err == nil
}
