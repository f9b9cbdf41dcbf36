package sessions

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

var sealedPrefix = []byte("sb1.")

var hkdfInfo = []byte("postsync session store")

// sealer encrypts credential entries with NaCl secretbox under a key derived from the
// configured store key.
type sealer struct {
	key [32]byte
}

func newSealer(storeKey string) (*sealer, error) {
	s := &sealer{}
	r := hkdf.New(sha256.New, []byte(storeKey), nil, hkdfInfo)
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive store key: %w", err)
	}
	return s, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	out := make([]byte, len(sealedPrefix)+base64.RawURLEncoding.EncodedLen(len(box)))
	copy(out, sealedPrefix)
	base64.RawURLEncoding.Encode(out[len(sealedPrefix):], box)
	return out, nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, sealedPrefix) {
		return nil, errors.New("sealed credential has an unknown format")
	}
	box := make([]byte, base64.RawURLEncoding.DecodedLen(len(sealed)-len(sealedPrefix)))
	n, err := base64.RawURLEncoding.Decode(box, sealed[len(sealedPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed credential: %w", err)
	}
	box = box[:n]
	if len(box) < 24 {
		return nil, errors.New("sealed credential is too short")
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("failed to open sealed credential: wrong store key?")
	}
	return plain, nil
}
