package storage

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
	"github.com/vocdoni/confidential-ballot/crypto/elgamal"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/log"
)

var (
	networkKeyName = []byte("network")
	signerKeyName  = []byte("signer")
)

// EncryptionKeys is the persisted network ElGamal key pair.
type EncryptionKeys struct {
	Curve      string   `cbor:"0,keyasint"`
	PublicKey  []byte   `cbor:"1,keyasint"`
	PrivateKey *big.Int `cbor:"2,keyasint"`
}

// FetchOrGenerateEncryptionKeys loads the network encryption key pair for
// the given curve. If none exists, a new one is generated and persisted.
func (s *Storage) FetchOrGenerateEncryptionKeys(curve ecc.Point) (ecc.Point, *big.Int, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var eks EncryptionKeys
	err := s.getArtifact(keysPrefix, networkKeyName, &eks)
	switch {
	case err == nil:
		if eks.Curve != curve.Type() {
			return nil, nil, fmt.Errorf("stored encryption key is for curve %s, not %s", eks.Curve, curve.Type())
		}
		pub := curve.New()
		if err := pub.Unmarshal(eks.PublicKey); err != nil {
			return nil, nil, fmt.Errorf("malformed stored encryption key: %w", err)
		}
		return pub, eks.PrivateKey, nil
	case !errors.Is(err, ErrNotFound):
		return nil, nil, err
	}

	pub, priv, err := elgamal.GenerateKey(curve)
	if err != nil {
		return nil, nil, err
	}
	eks = EncryptionKeys{Curve: curve.Type(), PublicKey: pub.Marshal(), PrivateKey: priv}
	if err := s.setArtifact(keysPrefix, networkKeyName, &eks); err != nil {
		return nil, nil, err
	}
	log.Infow("generated network encryption key", "curve", curve.Type(), "publicKey", pub.String())
	return pub, priv, nil
}

// FetchOrGenerateSigner loads the node signing key, generating and
// persisting a new one if none exists.
func (s *Storage) FetchOrGenerateSigner() (*ethereum.Signer, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var raw []byte
	err := s.getArtifact(keysPrefix, signerKeyName, &raw)
	switch {
	case err == nil:
		key, err := ethcrypto.ToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed stored signer key: %w", err)
		}
		return (*ethereum.Signer)(key), nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	signer, err := ethereum.NewSigner()
	if err != nil {
		return nil, err
	}
	if err := s.setArtifact(keysPrefix, signerKeyName, signer.HexPrivateKey().Bytes()); err != nil {
		return nil, err
	}
	log.Infow("generated node signer", "address", signer.Address().Hex())
	return signer, nil
}
