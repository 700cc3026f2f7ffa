package fhe

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
	"github.com/vocdoni/confidential-ballot/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-ballot/crypto/elgamal"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/storage"
	"github.com/vocdoni/confidential-ballot/types"
)

const (
	DefaultMaxAuthorizationValidity = 24 * time.Hour
	DefaultClockSkew                = 30 * time.Second
)

// ACL tells whether an account may access the plaintext of a handle.
type ACL interface {
	IsAllowed(handle types.Handle, account common.Address) (bool, error)
}

// CoprocessorConfig configures a Coprocessor.
type CoprocessorConfig struct {
	ChainID uint64
	// MaxAuthorizationValidity caps the window an authorization may declare.
	MaxAuthorizationValidity time.Duration
	// ClockSkew is tolerated on both ends of the window.
	ClockSkew time.Duration
	// Now returns the current time, time.Now if nil.
	Now func() time.Time
}

// Coprocessor holds the network ElGamal key. It acts as the relayer that
// verifies and attests encrypted inputs and as the reveal authority that
// re-encrypts plaintexts for authorized users.
type Coprocessor struct {
	stg    *storage.Storage
	signer *ethereum.Signer
	acl    ACL
	pub    ecc.Point
	priv   *big.Int
	cfg    CoprocessorConfig
}

var (
	_ Relayer         = (*Coprocessor)(nil)
	_ RevealAuthority = (*Coprocessor)(nil)
)

// NewCoprocessor loads or generates the network key from stg.
func NewCoprocessor(stg *storage.Storage, signer *ethereum.Signer, acl ACL, cfg CoprocessorConfig) (*Coprocessor, error) {
	if stg == nil || signer == nil || acl == nil {
		return nil, fmt.Errorf("storage, signer and acl are required")
	}
	if cfg.MaxAuthorizationValidity == 0 {
		cfg.MaxAuthorizationValidity = DefaultMaxAuthorizationValidity
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pub, priv, err := stg.FetchOrGenerateEncryptionKeys(bn254.New())
	if err != nil {
		return nil, fmt.Errorf("load network key: %w", err)
	}
	return &Coprocessor{stg: stg, signer: signer, acl: acl, pub: pub, priv: priv, cfg: cfg}, nil
}

// Address is the identity signing input proofs and decryption responses.
func (c *Coprocessor) Address() common.Address {
	return c.signer.Address()
}

func (c *Coprocessor) NetworkKey(_ context.Context) (*NetworkKey, error) {
	return &NetworkKey{
		Curve:     c.pub.Type(),
		PublicKey: c.pub.Marshal(),
		ChainID:   c.cfg.ChainID,
		Verifier:  c.Address(),
	}, nil
}

// VerifyInput checks the proof of knowledge of every ciphertext against the
// requested binding, stores the ciphertexts and signs their handles.
func (c *Coprocessor) VerifyInput(_ context.Context, req *InputRequest) (*EncryptedInput, error) {
	if req == nil || len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidInputProof)
	}
	if len(req.Inputs) > maxInputs {
		return nil, fmt.Errorf("%w: too many inputs", ErrInvalidInputProof)
	}
	handles := make([]types.Handle, len(req.Inputs))
	records := make([]*storage.Ciphertext, len(req.Inputs))
	for i, in := range req.Inputs {
		if in.Type.Bits() == 0 {
			return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidInputProof, in.Type)
		}
		var ct elgamal.Ciphertext
		if err := ct.Unmarshal(c.pub, in.Ciphertext); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInputProof, err)
		}
		var proof elgamal.KnowledgeProof
		if err := proof.Unmarshal(c.pub, in.Proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInputProof, err)
		}
		pctx := proofContext(req.Contract, req.Submitter, c.cfg.ChainID, uint8(i), in.Type)
		if err := elgamal.VerifyKnowledge(c.pub, &ct, &proof, pctx); err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrInvalidInputProof, i, err)
		}
		handles[i] = ComputeHandle(in.Ciphertext, uint8(i), in.Type, req.Contract, req.Submitter, c.cfg.ChainID)
		records[i] = &storage.Ciphertext{
			Data:      in.Ciphertext,
			Type:      uint8(in.Type),
			Contract:  req.Contract,
			Submitter: req.Submitter,
		}
	}
	for i, h := range handles {
		if err := c.stg.SetCiphertext(h, records[i]); err != nil {
			return nil, fmt.Errorf("store ciphertext: %w", err)
		}
	}
	sig, err := c.signer.Sign(inputProofDigest(handles, req.Contract, req.Submitter, c.cfg.ChainID))
	if err != nil {
		return nil, err
	}
	log.Debugw("input verified",
		"contract", req.Contract.Hex(),
		"submitter", req.Submitter.Hex(),
		"handles", len(handles))
	return &EncryptedInput{
		Handles:    handles,
		InputProof: EncodeInputProof(handles, []*ethereum.ECDSASignature{sig}),
	}, nil
}

// UserDecrypt returns the plaintext behind the authorized handle, encrypted
// to the authorization public key.
func (c *Coprocessor) UserDecrypt(_ context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error) {
	if req == nil || req.Authorization == nil {
		return nil, fmt.Errorf("%w: missing authorization", ErrAuthorizationRejected)
	}
	auth := req.Authorization
	if err := c.checkAuthorization(auth); err != nil {
		log.Debugw("user decrypt refused", "user", auth.User.Hex(), "handle", auth.Handle.Hex(), "error", err.Error())
		return nil, err
	}

	record, err := c.stg.Ciphertext(auth.Handle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown handle", ErrAuthorizationRejected)
		}
		return nil, err
	}
	var ct elgamal.Ciphertext
	if err := ct.Unmarshal(c.pub, record.Data); err != nil {
		return nil, err
	}
	value, err := elgamal.Decrypt(c.priv, &ct, Type(record.Type).Max())
	if err != nil {
		return nil, fmt.Errorf("decrypt handle %s: %w", auth.Handle.Hex(), err)
	}

	pubKey, err := ethcrypto.UnmarshalPubkey(auth.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key", ErrAuthorizationRejected)
	}
	plain := binary.BigEndian.AppendUint64(nil, value.Uint64())
	payload, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pubKey), plain, auth.Handle.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("re-encrypt plaintext: %w", err)
	}
	sig, err := c.signer.Sign(responseDigest(auth.Handle, payload))
	if err != nil {
		return nil, err
	}
	log.Debugw("user decrypt served", "user", auth.User.Hex(), "handle", auth.Handle.Hex())
	return &UserDecryptResponse{Handle: auth.Handle, Payload: payload, Signature: sig.Bytes()}, nil
}

func (c *Coprocessor) checkAuthorization(auth *Authorization) error {
	signer, err := auth.Signer()
	if err != nil || signer != auth.User {
		return fmt.Errorf("%w: signature does not match user", ErrAuthorizationRejected)
	}
	if auth.ChainID != c.cfg.ChainID {
		return fmt.Errorf("%w: wrong chain %d", ErrAuthorizationRejected, auth.ChainID)
	}
	if auth.DurationSeconds <= 0 || time.Duration(auth.DurationSeconds)*time.Second > c.cfg.MaxAuthorizationValidity {
		return fmt.Errorf("%w: validity window out of bounds", ErrAuthorizationRejected)
	}
	if !auth.ValidAt(c.cfg.Now(), c.cfg.ClockSkew) {
		return ErrAuthorizationExpired
	}
	for _, account := range []common.Address{auth.User, auth.Contract} {
		ok, err := c.acl.IsAllowed(auth.Handle, account)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s is not allowed to decrypt %s", ErrAuthorizationRejected, account.Hex(), auth.Handle.Hex())
		}
	}
	return nil
}
