package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minKeyLength   uint32 = 16
	minSaltLength         = 16

	defaultMemoryKB    uint32 = 64 * 1024
	defaultTimeCost    uint32 = 3
	defaultParallelism uint8  = 2
	defaultKeyLength   uint32 = 32
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	KeyLength   uint32
}

// Argon2id derives fixed-length digests with argon2id. Salts are supplied by
// the caller per the hasher contract; digests are raw key bytes, not PHC
// strings, because the credential store persists salt and digest separately.
type Argon2id struct {
	config Config
}

// NewArgon2id describes the newargon2id operation and its observable behavior.
//
// NewArgon2id may return an error when input validation, dependency calls, or security checks fail.
// NewArgon2id does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewArgon2id(cfg Config) (*Argon2id, error) {
	if cfg.Memory == 0 {
		cfg.Memory = defaultMemoryKB
	}
	if cfg.Time == 0 {
		cfg.Time = defaultTimeCost
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = defaultKeyLength
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2id{config: cfg}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory must be at least 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time cost must be at least 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be at least 1")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("argon2 key length must be at least 16 bytes")
	}
	return nil
}

// Hash derives the digest for the password under the given salt. It is
// deterministic for a fixed (password, salt) pair.
func (a *Argon2id) Hash(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("password must not be empty")
	}
	if len(salt) < minSaltLength {
		return nil, errors.New("salt must be at least 16 bytes")
	}

	return argon2.IDKey(
		password,
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	), nil
}

// Verify re-derives the digest and compares it in constant time.
func (a *Argon2id) Verify(password, salt, digest []byte) (bool, error) {
	if len(digest) == 0 {
		return false, errors.New("stored digest must not be empty")
	}

	computed, err := a.Hash(password, salt)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

// NewSalt draws size random bytes from crypto/rand.
func (a *Argon2id) NewSalt(size int) ([]byte, error) {
	if size < minSaltLength {
		return nil, errors.New("salt size must be at least 16 bytes")
	}

	salt := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
