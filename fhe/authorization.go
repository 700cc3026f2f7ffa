package fhe

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/types"
)

const authorizationDomain = "confidential-ballot/user-decrypt/v1"

// Authorization is a time bounded statement, signed by User, asking the
// reveal authority to re-encrypt the plaintext behind Handle to PublicKey.
type Authorization struct {
	PublicKey       types.HexBytes `json:"publicKey"`
	Handle          types.Handle   `json:"handle"`
	Contract        common.Address `json:"contract"`
	User            common.Address `json:"user"`
	ChainID         uint64         `json:"chainId"`
	StartTimestamp  int64          `json:"startTimestamp"`
	DurationSeconds int64          `json:"durationSeconds"`
	Signature       types.HexBytes `json:"signature"`
}

// Digest returns the message covered by the signature.
func (a *Authorization) Digest() []byte {
	buf := []byte(authorizationDomain)
	buf = append(buf, a.PublicKey...)
	buf = append(buf, a.Handle.Bytes()...)
	buf = append(buf, a.Contract.Bytes()...)
	buf = append(buf, a.User.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, a.ChainID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.StartTimestamp))
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.DurationSeconds))
	return ethcrypto.Keccak256(buf)
}

// Start returns the beginning of the validity window.
func (a *Authorization) Start() time.Time {
	return time.Unix(a.StartTimestamp, 0)
}

// End returns the end of the validity window.
func (a *Authorization) End() time.Time {
	return a.Start().Add(time.Duration(a.DurationSeconds) * time.Second)
}

// ValidAt reports whether now falls in the validity window, with the given
// tolerance for clock skew.
func (a *Authorization) ValidAt(now time.Time, skew time.Duration) bool {
	return !now.Before(a.Start().Add(-skew)) && now.Before(a.End().Add(skew))
}

// Signer recovers the address that signed the authorization.
func (a *Authorization) Signer() (common.Address, error) {
	sig, err := ethereum.New(a.Signature)
	if err != nil {
		return common.Address{}, err
	}
	return ethereum.AddrFromSignature(a.Digest(), sig)
}

// NewAuthorization builds and signs an authorization for handle, together
// with the ephemeral key that will decrypt the authority's response.
func NewAuthorization(signer *ethereum.Signer, handle types.Handle, contract common.Address,
	chainID uint64, start time.Time, validity time.Duration,
) (*Authorization, *ecies.PrivateKey, error) {
	if validity < time.Second {
		return nil, nil, fmt.Errorf("authorization validity too short: %s", validity)
	}
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	ephemeral := ecies.ImportECDSA(key)
	auth := &Authorization{
		PublicKey:       ethcrypto.FromECDSAPub(ephemeral.PublicKey.ExportECDSA()),
		Handle:          handle,
		Contract:        contract,
		User:            signer.Address(),
		ChainID:         chainID,
		StartTimestamp:  start.Unix(),
		DurationSeconds: int64(validity / time.Second),
	}
	sig, err := signer.Sign(auth.Digest())
	if err != nil {
		return nil, nil, err
	}
	auth.Signature = sig.Bytes()
	return auth, ephemeral, nil
}

// UserDecryptRequest carries a signed authorization to the reveal authority.
type UserDecryptRequest struct {
	Authorization *Authorization `json:"authorization"`
}

// UserDecryptResponse holds the plaintext encrypted to the authorization
// public key, signed by the authority.
type UserDecryptResponse struct {
	Handle    types.Handle   `json:"handle"`
	Payload   types.HexBytes `json:"payload"`
	Signature types.HexBytes `json:"signature"`
}

func responseDigest(handle types.Handle, payload []byte) []byte {
	return ethcrypto.Keccak256(handle.Bytes(), payload)
}

// RevealAuthority re-encrypts plaintexts for authorized users.
type RevealAuthority interface {
	UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error)
}

// OpenResponse decrypts the response payload with the ephemeral key. If
// authority is not the zero address, the response signature must match it.
func OpenResponse(resp *UserDecryptResponse, handle types.Handle, key *ecies.PrivateKey, authority common.Address) (uint64, error) {
	if resp.Handle != handle {
		return 0, fmt.Errorf("response is for handle %s, not %s", resp.Handle.Hex(), handle.Hex())
	}
	if authority != (common.Address{}) {
		sig, err := ethereum.New(resp.Signature)
		if err != nil {
			return 0, fmt.Errorf("invalid response signature: %w", err)
		}
		if !sig.Verify(responseDigest(resp.Handle, resp.Payload), authority) {
			return 0, fmt.Errorf("response not signed by authority %s", authority.Hex())
		}
	}
	plain, err := key.Decrypt(resp.Payload, handle.Bytes(), nil)
	if err != nil {
		return 0, fmt.Errorf("decrypt response: %w", err)
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("unexpected plaintext length %d", len(plain))
	}
	return binary.BigEndian.Uint64(plain), nil
}
