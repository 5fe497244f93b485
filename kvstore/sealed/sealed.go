// Package sealed provides a kvstore.Store decorator that encrypts values at
// rest with AES-256-GCM. The encryption key is derived from a device
// passphrase via argon2id and held in a memguard Enclave so it is never
// resident in plain process memory between operations.
package sealed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/quantfold/tradewire/internal/util"
	"github.com/quantfold/tradewire/kvstore"
)

const aadPrefix = "tradewire:kv:"

// envelope is the stored representation of a sealed value.
type envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Store wraps an inner kvstore.Store, sealing every value before it reaches
// the inner store and opening it on the way back. Keys are left in the clear;
// each value is bound to its key through the GCM additional data so sealed
// blobs cannot be swapped between keys.
type Store struct {
	inner kvstore.Store
	key   *memguard.Enclave
}

var _ kvstore.Store = (*Store)(nil)

// New derives the sealing key from the passphrase and salt using argon2id
// and returns a sealed Store around inner.
func New(inner kvstore.Store, passphrase string, salt []byte) (*Store, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt must not be empty")
	}
	key, err := util.DeriveArgon2idKey(passphrase, salt, util.DefaultArgon2idParams())
	if err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}
	// NewEnclave wipes the source slice.
	return &Store{inner: inner, key: memguard.NewEnclave(key)}, nil
}

// NewWithKey returns a sealed Store using the provided 32-byte key directly.
// The caller's copy of the key is wiped.
func NewWithKey(inner kvstore.Store, key []byte) (*Store, error) {
	if len(key) != util.AESKeySize {
		return nil, fmt.Errorf("sealing key must be exactly %d bytes, got %d", util.AESKeySize, len(key))
	}
	return &Store{inner: inner, key: memguard.NewEnclave(key)}, nil
}

func (s *Store) seal(key, value string) (string, error) {
	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealing key enclave: %w", err)
	}
	defer buf.Destroy()

	cipher, err := util.EncryptAESWithAAD([]byte(value), buf.Bytes(), []byte(aadPrefix+key))
	if err != nil {
		return "", err
	}

	env := envelope{
		Ver:        1,
		Scheme:     "aes256gcm",
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return string(data), nil
}

func (s *Store) open(key, stored string) (string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(stored), &env); err != nil {
		return "", fmt.Errorf("decoding envelope for %s: %w", key, err)
	}
	if env.Ver != 1 {
		return "", fmt.Errorf("unsupported envelope version: %d", env.Ver)
	}
	if env.Scheme != "aes256gcm" {
		return "", fmt.Errorf("unsupported envelope scheme: %s", env.Scheme)
	}

	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealing key enclave: %w", err)
	}
	defer buf.Destroy()

	fullCipher := make([]byte, len(env.Nonce)+len(env.Ciphertext))
	copy(fullCipher, env.Nonce)
	copy(fullCipher[len(env.Nonce):], env.Ciphertext)

	plain, err := util.DecryptAESWithAAD(fullCipher, buf.Bytes(), []byte(aadPrefix+key))
	if err != nil {
		return "", fmt.Errorf("opening sealed value for %s: %w", key, err)
	}
	return string(plain), nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	stored, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.open(key, stored)
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	sealedValue, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealedValue)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *Store) MultiSet(ctx context.Context, pairs []kvstore.Pair) error {
	sealedPairs := make([]kvstore.Pair, 0, len(pairs))
	for _, p := range pairs {
		sealedValue, err := s.seal(p.Key, p.Value)
		if err != nil {
			return err
		}
		sealedPairs = append(sealedPairs, kvstore.Pair{Key: p.Key, Value: sealedValue})
	}
	return s.inner.MultiSet(ctx, sealedPairs)
}

func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	return s.inner.MultiRemove(ctx, keys)
}
