package storage

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
	"github.com/vocdoni/confidential-ballot/types"
)

// Ciphertext is a ciphertext accepted by the coprocessor, with the binding
// it was proven for.
type Ciphertext struct {
	Data      []byte         `cbor:"0,keyasint"`
	Type      uint8          `cbor:"1,keyasint"`
	Contract  common.Address `cbor:"2,keyasint"`
	Submitter common.Address `cbor:"3,keyasint"`
}

// SetCiphertext stores the ciphertext for handle. Storing the same
// ciphertext twice is a no-op; storing a different one under an existing
// handle returns ErrKeyAlreadyExists.
func (s *Storage) SetCiphertext(handle types.Handle, ct *Ciphertext) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var existing Ciphertext
	switch err := s.getArtifact(ciphertextPrefix, handle.Bytes(), &existing); {
	case err == nil:
		if bytes.Equal(existing.Data, ct.Data) && existing.Contract == ct.Contract && existing.Submitter == ct.Submitter {
			return nil
		}
		return ErrKeyAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return s.setArtifact(ciphertextPrefix, handle.Bytes(), ct)
}

// Ciphertext returns the ciphertext stored for handle or ErrNotFound.
func (s *Storage) Ciphertext(handle types.Handle) (*Ciphertext, error) {
	ck := cacheKey(ciphertextPrefix, handle.Bytes())
	if cached, ok := s.cache.Get(ck); ok {
		ct := cached.(Ciphertext)
		return &ct, nil
	}
	var ct Ciphertext
	if err := s.getArtifact(ciphertextPrefix, handle.Bytes(), &ct); err != nil {
		return nil, err
	}
	s.cache.Add(ck, ct)
	return &ct, nil
}

// IsAllowed reports whether account was granted access to handle.
func (s *Storage) IsAllowed(handle types.Handle, account common.Address) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(s.db, aclPrefix).Get(aclKey(handle, account))
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
