package storage

import (
	"fmt"

	"github.com/jmcleod/ironkeep/crypto"
	"github.com/jmcleod/ironkeep/internal/util"
)

// Envelope is one encrypted field together with the nonce it was sealed
// with. The two halves are always stored and moved as a pair.
type Envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// EnvelopeFromSealed copies a crypto.Sealed into an Envelope.
func EnvelopeFromSealed(s crypto.Sealed) Envelope {
	return Envelope{
		Nonce:      util.CopyBytes(s.Nonce),
		Ciphertext: util.CopyBytes(s.Ciphertext),
	}
}

// Sealed returns the envelope as a crypto.Sealed ready for decryption.
func (e Envelope) Sealed() crypto.Sealed {
	return crypto.Sealed{Nonce: e.Nonce, Ciphertext: e.Ciphertext}
}

// Validate rejects envelopes whose nonce is missing or the wrong size.
func (e Envelope) Validate() error {
	if len(e.Nonce) != crypto.NonceSize {
		return fmt.Errorf("envelope nonce must be %d bytes, got %d", crypto.NonceSize, len(e.Nonce))
	}
	if len(e.Ciphertext) < crypto.TagSize {
		return fmt.Errorf("envelope ciphertext shorter than tag")
	}
	return nil
}

func (e Envelope) Clone() Envelope {
	return Envelope{
		Nonce:      util.CopyBytes(e.Nonce),
		Ciphertext: util.CopyBytes(e.Ciphertext),
	}
}

// Columns returns the base64 text forms used by text-column stores.
func (e Envelope) Columns() (nonce, ciphertext string) {
	return util.B64Encode(e.Nonce), util.B64Encode(e.Ciphertext)
}

// EnvelopeFromColumns parses the base64 text forms produced by Columns.
func EnvelopeFromColumns(nonce, ciphertext string) (Envelope, error) {
	s, err := crypto.SealedFromBase64(nonce, ciphertext)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Nonce: s.Nonce, Ciphertext: s.Ciphertext}, nil
}
