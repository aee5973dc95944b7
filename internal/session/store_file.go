package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	fileMagic  = "wbs1"
	saltSize   = 16
	keySize    = chacha20poly1305.KeySize
	nonceSize  = chacha20poly1305.NonceSizeX
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
)

// ErrBadSecret is returned when a session file cannot be opened with the
// configured secret.
var ErrBadSecret = errors.New("session file cannot be decrypted with the configured secret")

// FileStore keeps the record in a single file sealed with XChaCha20-Poly1305.
// The key is derived from a secret with Argon2id and a salt stored in the
// file header, so every save re-keys.
//
// File layout: magic(4) | salt(16) | nonce(24) | ciphertext.
type FileStore struct {
	path   string
	secret []byte
}

// NewFileStore creates a store at path sealed with secret.
func NewFileStore(path, secret string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path is empty")
	}
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty")
	}
	return &FileStore{path: path, secret: []byte(secret)}, nil
}

func (f *FileStore) Load(context.Context) (Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("read session file: %w", err)
	}

	plain, err := f.open(data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode session file: %w", ErrUnreadable, err)
	}
	return rec, nil
}

func (f *FileStore) Save(_ context.Context, rec Record) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	sealed, err := f.seal(plain)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (f *FileStore) deriveKey(salt []byte) []byte {
	return argon2.IDKey(f.secret, salt, argonTime, argonMem, argonLanes, keySize)
}

func (f *FileStore) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(f.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, 0, len(fileMagic)+saltSize+nonceSize+len(plain)+aead.Overhead())
	out = append(out, fileMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, []byte(fileMagic)), nil
}

func (f *FileStore) open(data []byte) ([]byte, error) {
	header := len(fileMagic) + saltSize + nonceSize
	if len(data) < header || string(data[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("session file has an unknown format")
	}
	salt := data[len(fileMagic) : len(fileMagic)+saltSize]
	nonce := data[len(fileMagic)+saltSize : header]

	aead, err := chacha20poly1305.NewX(f.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, data[header:], []byte(fileMagic))
	if err != nil {
		return nil, ErrBadSecret
	}
	return plain, nil
}
