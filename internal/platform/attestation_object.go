package platform

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SoftwareFormat is the fmt value of attestation objects produced by
// SoftwareAttester.
const SoftwareFormat = "grantiva-software"

// ES256 is the COSE algorithm identifier for ECDSA P-256 with SHA-256.
const ES256 = -7

// ErrInvalidAttestation is returned by VerifyAttestation for any object
// that does not verify.
var ErrInvalidAttestation = errors.New("invalid attestation object")

// AttestationObject is the CBOR envelope submitted to the server.
type AttestationObject struct {
	Format    string               `cbor:"fmt"`
	AuthData  []byte               `cbor:"authData"`
	Statement AttestationStatement `cbor:"attStmt"`
}

type AttestationStatement struct {
	Alg       int64  `cbor:"alg"`
	Sig       []byte `cbor:"sig"`
	PublicKey []byte `cbor:"pubKey"` // PKIX DER
}

// authData layout: rpIdHash(32) | flags(1) | signCount(4) | credIdLen(2) | credId
const (
	rpIDHashLen   = 32
	authHeaderLen = rpIDHashLen + 1 + 4 + 2

	flagUserPresent = 0x01
	flagAttested    = 0x40
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("platform: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("platform: CBOR decoder initialization failed: " + err.Error())
	}
}

// KeyIDFor derives a key id from the key's PKIX public key bytes.
func KeyIDFor(publicKeyDER []byte) string {
	sum := sha256.Sum256(publicKeyDER)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func buildAuthData(appID string, signCount uint32, credentialID []byte) []byte {
	rpIDHash := sha256.Sum256([]byte(appID))
	buf := make([]byte, 0, authHeaderLen+len(credentialID))
	buf = append(buf, rpIDHash[:]...)
	buf = append(buf, flagUserPresent|flagAttested)
	buf = binary.BigEndian.AppendUint32(buf, signCount)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(credentialID)))
	return append(buf, credentialID...)
}

func signedDigest(authData, clientDataHash []byte) []byte {
	h := sha256.New()
	h.Write(authData)
	h.Write(clientDataHash)
	return h.Sum(nil)
}

// VerifiedAttestation is what a verifier learns from a valid object.
type VerifiedAttestation struct {
	KeyID     string
	SignCount uint32
	PublicKey *ecdsa.PublicKey
}

// VerifyAttestation checks a software attestation object against the
// expected key id, client data hash and app id. An empty appID skips the
// relying party check.
func VerifyAttestation(object []byte, keyID string, clientDataHash []byte, appID string) (*VerifiedAttestation, error) {
	var obj AttestationObject
	if err := decMode.Unmarshal(object, &obj); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidAttestation, err)
	}
	if obj.Format != SoftwareFormat {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidAttestation, obj.Format)
	}
	if obj.Statement.Alg != ES256 {
		return nil, fmt.Errorf("%w: unsupported alg %d", ErrInvalidAttestation, obj.Statement.Alg)
	}

	parsed, err := x509.ParsePKIXPublicKey(obj.Statement.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidAttestation, err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not ECDSA", ErrInvalidAttestation)
	}
	if KeyIDFor(obj.Statement.PublicKey) != keyID {
		return nil, fmt.Errorf("%w: key id mismatch", ErrInvalidAttestation)
	}

	ad := obj.AuthData
	if len(ad) < authHeaderLen {
		return nil, fmt.Errorf("%w: authData too short", ErrInvalidAttestation)
	}
	if appID != "" {
		want := sha256.Sum256([]byte(appID))
		if !bytes.Equal(ad[:rpIDHashLen], want[:]) {
			return nil, fmt.Errorf("%w: app id mismatch", ErrInvalidAttestation)
		}
	}
	if ad[rpIDHashLen]&flagAttested == 0 {
		return nil, fmt.Errorf("%w: attested flag not set", ErrInvalidAttestation)
	}
	signCount := binary.BigEndian.Uint32(ad[rpIDHashLen+1:])
	credLen := int(binary.BigEndian.Uint16(ad[rpIDHashLen+5:]))
	if len(ad) != authHeaderLen+credLen {
		return nil, fmt.Errorf("%w: credential id length", ErrInvalidAttestation)
	}
	credSum := sha256.Sum256(obj.Statement.PublicKey)
	if !bytes.Equal(ad[authHeaderLen:], credSum[:]) {
		return nil, fmt.Errorf("%w: credential id mismatch", ErrInvalidAttestation)
	}

	if !ecdsa.VerifyASN1(pub, signedDigest(ad, clientDataHash), obj.Statement.Sig) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidAttestation)
	}
	return &VerifiedAttestation{KeyID: keyID, SignCount: signCount, PublicKey: pub}, nil
}
