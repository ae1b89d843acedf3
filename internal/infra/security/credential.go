package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

// hmacKeyLength matches the HMAC-SHA512 block size so stored salts stay
// compatible with credentials written by the previous service.
const hmacKeyLength = 128

var errInvalidConfig = errors.New("credential: invalid configuration")

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the library default Argon2id configuration.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (cfg Argon2Config) validate() error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// CredentialHasher derives salted password credentials.
//
// New credentials use the configured algorithm; Verify honours the algorithm
// recorded on the stored credential, so switching algorithms never locks out
// existing accounts.
type CredentialHasher struct {
	algorithm string
	argon     Argon2Config
}

// NewCredentialHasher constructs a hasher for the named algorithm. An empty
// algorithm selects HMAC-SHA512.
func NewCredentialHasher(algorithm string, argon Argon2Config) (*CredentialHasher, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	switch algorithm {
	case "", domain.PasswordAlgoHMACSHA512:
		algorithm = domain.PasswordAlgoHMACSHA512
	case domain.PasswordAlgoArgon2ID:
		if err := argon.validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", errInvalidConfig, algorithm)
	}

	return &CredentialHasher{algorithm: algorithm, argon: argon}, nil
}

// Algorithm reports the algorithm used for new credentials.
func (h *CredentialHasher) Algorithm() string {
	return h.algorithm
}

// Hash derives a credential with a freshly generated random salt.
func (h *CredentialHasher) Hash(password string) (domain.Credential, error) {
	if h.algorithm == domain.PasswordAlgoArgon2ID {
		return h.hashArgon2(password)
	}
	return hashHMAC(password)
}

// Verify recomputes the credential for password and compares it with the
// stored one. Malformed stored material yields false.
func (h *CredentialHasher) Verify(password string, credential domain.Credential) bool {
	if credential.Hash == "" || credential.Salt == "" {
		return false
	}

	switch credential.Algorithm {
	case "", domain.PasswordAlgoHMACSHA512:
		return verifyHMAC(password, credential)
	case domain.PasswordAlgoArgon2ID:
		return verifyArgon2(password, credential)
	default:
		return false
	}
}

func hashHMAC(password string) (domain.Credential, error) {
	key := make([]byte, hmacKeyLength)
	if _, err := rand.Read(key); err != nil {
		return domain.Credential{}, fmt.Errorf("credential: generate salt: %w", err)
	}

	return domain.Credential{
		Hash:      base64.StdEncoding.EncodeToString(hmacSum(key, password)),
		Salt:      base64.StdEncoding.EncodeToString(key),
		Algorithm: domain.PasswordAlgoHMACSHA512,
	}, nil
}

func verifyHMAC(password string, credential domain.Credential) bool {
	key, err := base64.StdEncoding.DecodeString(credential.Salt)
	if err != nil || len(key) == 0 {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(credential.Hash)
	if err != nil {
		return false
	}
	return hmac.Equal(hmacSum(key, password), stored)
}

func hmacSum(key []byte, password string) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// Argon2 hashes are stored as "m=<memory>,t=<iterations>,p=<parallelism>$<hash>"
// with the salt kept in its own field.
func (h *CredentialHasher) hashArgon2(password string) (domain.Credential, error) {
	cfg := h.argon
	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return domain.Credential{}, fmt.Errorf("credential: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return domain.Credential{
		Hash: fmt.Sprintf("m=%d,t=%d,p=%d$%s",
			cfg.Memory, cfg.Iterations, cfg.Parallelism,
			base64.RawStdEncoding.EncodeToString(sum)),
		Salt:      base64.RawStdEncoding.EncodeToString(salt),
		Algorithm: domain.PasswordAlgoArgon2ID,
	}, nil
}

func verifyArgon2(password string, credential domain.Credential) bool {
	params, encodedHash, ok := strings.Cut(credential.Hash, "$")
	if !ok {
		return false
	}

	var (
		memory, iterations uint32
		parallelism        uint8
	)
	if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(credential.Salt)
	if err != nil || len(salt) == 0 {
		return false
	}
	stored, err := base64.RawStdEncoding.DecodeString(encodedHash)
	if err != nil || len(stored) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(stored)))
	return subtle.ConstantTimeCompare(computed, stored) == 1
}

var _ port.PasswordHasher = (*CredentialHasher)(nil)
