package ethereum

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func TestNew(t *testing.T) {
	c := qt.New(t)

	privKey, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	msg := []byte("test message")
	raw, err := ethcrypto.Sign(HashMessage(msg), privKey)
	c.Assert(err, qt.IsNil)

	sig, err := New(raw)
	c.Assert(err, qt.IsNil)
	c.Assert(sig.recovery, qt.Equals, raw[64])
	c.Assert(sig.Bytes(), qt.DeepEquals, raw)

	// 27/28 recovery ids are normalized
	legacy := append([]byte{}, raw...)
	legacy[64] += 27
	sig, err = New(legacy)
	c.Assert(err, qt.IsNil)
	c.Assert(sig.Bytes(), qt.DeepEquals, raw)

	_, err = New(raw[:SignatureMinLength-1])
	c.Assert(err, qt.IsNotNil)

	bad := append([]byte{}, raw...)
	bad[64] = 9
	_, err = New(bad)
	c.Assert(err, qt.IsNotNil)
}

func TestValid(t *testing.T) {
	c := qt.New(t)
	c.Assert((&ECDSASignature{R: big.NewInt(1), S: big.NewInt(2)}).Valid(), qt.IsTrue)
	c.Assert((&ECDSASignature{S: big.NewInt(2)}).Valid(), qt.IsFalse)
	var nilSig *ECDSASignature
	c.Assert(nilSig.Valid(), qt.IsFalse)
}

func TestVerifyAndRecover(t *testing.T) {
	c := qt.New(t)

	alice, err := NewSigner()
	c.Assert(err, qt.IsNil)
	bob, err := NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("authorize reveal")
	sig, err := alice.Sign(msg)
	c.Assert(err, qt.IsNil)

	c.Assert(sig.Verify(msg, alice.Address()), qt.IsTrue)
	c.Assert(sig.Verify(msg, bob.Address()), qt.IsFalse)
	c.Assert(sig.Verify([]byte("other"), alice.Address()), qt.IsFalse)

	addr, err := AddrFromSignature(msg, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, alice.Address())

	hexSig, err := HexToSignature(hexutil.Encode(sig.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(hexSig.Verify(msg, alice.Address()), qt.IsTrue)

	_, err = AddrFromSignature(msg, nil)
	c.Assert(err, qt.IsNotNil)
}
