package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-ballot/log"
)

// ArtifactEncoding defines the encoding formats for artifacts.
type ArtifactEncoding int

const (
	ArtifactEncodingCBOR ArtifactEncoding = iota
	ArtifactEncodingJSON
)

var (
	encModeOnce sync.Once
	encMode     cbor.EncMode
	encModeErr  error
)

func cborEncMode() (cbor.EncMode, error) {
	encModeOnce.Do(func() {
		opts := cbor.CoreDetEncOptions()
		opts.Time = cbor.TimeRFC3339Nano
		encMode, encModeErr = opts.EncMode()
	})
	return encMode, encModeErr
}

// EncodeArtifact encodes an artifact, with deterministic CBOR by default.
// JSON is used when requested, falling back to CBOR if it fails.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	if len(encoding) > 0 {
		switch encoding[0] {
		case ArtifactEncodingCBOR:
		case ArtifactEncodingJSON:
			res, err := json.Marshal(a)
			if err != nil {
				log.Warnw("falling back to CBOR encoding due to JSON encoding failure", "error", err)
				break
			}
			return res, nil
		default:
			return nil, fmt.Errorf("unknown artifact encoding: %d", encoding[0])
		}
	}
	em, err := cborEncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

// DecodeArtifact decodes an artifact, CBOR by default.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	if len(encoding) > 0 {
		switch encoding[0] {
		case ArtifactEncodingCBOR:
		case ArtifactEncodingJSON:
			if err := json.Unmarshal(data, out); err != nil {
				log.Warnw("falling back to CBOR decoding due to JSON decoding failure", "error", err)
				break
			}
			return nil
		default:
			return fmt.Errorf("unknown artifact encoding: %d", encoding[0])
		}
	}
	return cbor.Unmarshal(data, out)
}
