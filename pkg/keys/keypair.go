package keys

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/curve25519"

	"github.com/systmms/sealcfg/internal/secure"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// Algorithm identifies the key type stored in the secret manager.
const Algorithm = "x25519-box"

const recordVersion = 1

// Keypair is a materialized keypair. The private half stays inside a memguard
// enclave and is only exposed through OpenPrivate.
type Keypair struct {
	namespace string
	public    [32]byte
	private   *secure.Key
}

// Namespace returns the secret manager name backing this keypair.
func (k *Keypair) Namespace() string {
	return k.namespace
}

// PublicKey returns a copy of the public key.
func (k *Keypair) PublicKey() *[32]byte {
	pub := k.public
	return &pub
}

// Fingerprint returns the hex SHA-256 of the public key.
func (k *Keypair) Fingerprint() string {
	sum := sha256.Sum256(k.public[:])
	return hex.EncodeToString(sum[:])
}

// OpenPrivate decrypts the private key into a locked buffer. The caller MUST
// call Destroy on the returned buffer.
func (k *Keypair) OpenPrivate() (*memguard.LockedBuffer, error) {
	return k.private.Open()
}

// record is the document stored in the secret manager for each namespace.
type record struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

func encodeRecord(public, private *[32]byte) ([]byte, error) {
	return json.Marshal(record{
		Version:    recordVersion,
		Algorithm:  Algorithm,
		PrivateKey: base64.StdEncoding.EncodeToString(private[:]),
		PublicKey:  base64.StdEncoding.EncodeToString(public[:]),
	})
}

// decodeRecord parses stored key material. Every failure is a key format
// error: present but unreadable material must never be regenerated.
func decodeRecord(namespace string, payload []byte) (*Keypair, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, cfgerrors.KeyFormat(namespace, err)
	}
	if rec.Version != recordVersion {
		return nil, cfgerrors.KeyFormat(namespace, fmt.Errorf("unsupported record version %d", rec.Version))
	}
	if rec.Algorithm != Algorithm {
		return nil, cfgerrors.KeyFormat(namespace, fmt.Errorf("unsupported algorithm %q", rec.Algorithm))
	}

	private, err := base64.StdEncoding.DecodeString(rec.PrivateKey)
	if err != nil {
		return nil, cfgerrors.KeyFormat(namespace, err)
	}
	if len(private) != secure.KeySize {
		return nil, cfgerrors.KeyFormat(namespace, fmt.Errorf("private key is %d bytes", len(private)))
	}

	derived, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, cfgerrors.KeyFormat(namespace, err)
	}
	if rec.PublicKey != "" {
		stored, err := base64.StdEncoding.DecodeString(rec.PublicKey)
		if err != nil {
			return nil, cfgerrors.KeyFormat(namespace, err)
		}
		if subtle.ConstantTimeCompare(stored, derived) != 1 {
			return nil, cfgerrors.KeyFormat(namespace, errors.New("public key does not match private key"))
		}
	}

	kp := &Keypair{namespace: namespace}
	copy(kp.public[:], derived)
	kp.private, err = secure.NewKey(private)
	if err != nil {
		return nil, cfgerrors.KeyFormat(namespace, err)
	}
	return kp, nil
}
