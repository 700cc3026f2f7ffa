package fhe

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/types"
)

// inputProofDigest is the message signed by input verifiers.
func inputProofDigest(handles []types.Handle, contract, submitter common.Address, chainID uint64) []byte {
	buf := make([]byte, 0, 32*len(handles)+48)
	for _, h := range handles {
		buf = append(buf, h.Bytes()...)
	}
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, submitter.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, chainID)
	return ethcrypto.Keccak256(buf)
}

// EncodeInputProof serializes numHandles ‖ numSigners ‖ handles ‖ signatures.
func EncodeInputProof(handles []types.Handle, signatures []*ethereum.ECDSASignature) types.HexBytes {
	out := []byte{byte(len(handles)), byte(len(signatures))}
	for _, h := range handles {
		out = append(out, h.Bytes()...)
	}
	for _, s := range signatures {
		out = append(out, s.Bytes()...)
	}
	return out
}

// DecodeInputProof parses an input proof.
func DecodeInputProof(proof []byte) ([]types.Handle, []*ethereum.ECDSASignature, error) {
	if len(proof) < 2 {
		return nil, nil, fmt.Errorf("%w: too short", ErrInvalidInputProof)
	}
	nh, ns := int(proof[0]), int(proof[1])
	if len(proof) != 2+32*nh+ethereum.SignatureLength*ns {
		return nil, nil, fmt.Errorf("%w: bad length", ErrInvalidInputProof)
	}
	handles := make([]types.Handle, nh)
	off := 2
	for i := range handles {
		handles[i] = common.BytesToHash(proof[off : off+32])
		off += 32
	}
	sigs := make([]*ethereum.ECDSASignature, ns)
	for i := range sigs {
		sig, err := ethereum.New(proof[off : off+ethereum.SignatureLength])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInputProof, err)
		}
		sigs[i] = sig
		off += ethereum.SignatureLength
	}
	return handles, sigs, nil
}

// VerifyInputProof checks that handle is attested by at least threshold of
// the trusted verifiers for the (contract, submitter, chainID) binding.
func VerifyInputProof(handle types.Handle, proof []byte, contract, submitter common.Address,
	chainID uint64, verifiers []common.Address, threshold int,
) error {
	handles, sigs, err := DecodeInputProof(proof)
	if err != nil {
		return err
	}
	if !slices.Contains(handles, handle) {
		return fmt.Errorf("%w: handle not attested", ErrInvalidInputProof)
	}
	if HandleChainID(handle) != chainID {
		return fmt.Errorf("%w: handle is for chain %d", ErrInvalidInputProof, HandleChainID(handle))
	}
	digest := inputProofDigest(handles, contract, submitter, chainID)
	signers := map[common.Address]bool{}
	for _, sig := range sigs {
		addr, err := ethereum.AddrFromSignature(digest, sig)
		if err != nil {
			continue
		}
		if slices.Contains(verifiers, addr) {
			signers[addr] = true
		}
	}
	if threshold < 1 {
		threshold = 1
	}
	if len(signers) < threshold {
		return fmt.Errorf("%w: %d of %d required verifier signatures", ErrInvalidInputProof, len(signers), threshold)
	}
	return nil
}
