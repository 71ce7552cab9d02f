package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

// AccountID is a 32-byte ledger address. Addresses are either held by an
// external key (signers) or derived deterministically from seed bytes, in
// which case no key exists and only code reconstructing the same seeds can
// authorize on their behalf.
type AccountID [32]byte

// ZeroID is the all-zero address. It is never a valid account.
var ZeroID AccountID

func (id AccountID) String() string {
	return hex.EncodeToString(id[:])
}

func (id AccountID) IsZero() bool {
	return id == ZeroID
}

// MarshalText renders the address as hex for JSON record bodies.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText parses a hex address.
func (id *AccountID) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(id) {
		return errors.New("ledger: address must be 32 bytes")
	}
	copy(id[:], raw)
	return nil
}

// ParseAccountID parses the hex form produced by String.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// Bytes returns the address as a seed-usable byte slice.
func (id AccountID) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// NewKeyID generates a fresh externally-held account address.
func NewKeyID() AccountID {
	var id AccountID
	if _, err := rand.Read(id[:]); err != nil {
		panic("ledger: entropy unavailable: " + err.Error())
	}
	return id
}

// DeriveWithBump computes the derived address for the given seeds and bump
// salt. Each seed is length-prefixed so that seed boundaries are unambiguous.
func DeriveWithBump(bump uint8, seeds ...[]byte) AccountID {
	h := sha256.New()
	var lenBuf [4]byte
	for _, s := range seeds {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write(s)
	}
	h.Write([]byte{bump})

	var id AccountID
	copy(id[:], h.Sum(nil))
	return id
}

// Derive computes the canonical derived address for the given seeds, returning
// the address and the bump salt used. The bump is stored alongside records so
// the owning identity can be reconstructed later for authorization.
func Derive(seeds ...[]byte) (AccountID, uint8) {
	const canonicalBump = 255
	return DeriveWithBump(canonicalBump, seeds...), canonicalBump
}

// EndSeed encodes a slot deadline as a derivation seed, so one seller can run
// independent concurrent auctions for the same asset pair with different ends.
func EndSeed(end uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], end)
	return b[:]
}

// Authority identifies who may move funds out of an account: either the
// holder of an external key, or a derived identity reconstructed from its
// seeds and bump. Authorization is an equality check against the account's
// recorded authority, not signature verification.
type Authority struct {
	signer AccountID
	seeds  [][]byte
	bump   uint8
}

// KeyAuthority authorizes as an externally-held key.
func KeyAuthority(id AccountID) Authority {
	return Authority{signer: id}
}

// DerivedAuthority authorizes as the derived identity of seeds+bump.
func DerivedAuthority(bump uint8, seeds ...[]byte) Authority {
	return Authority{seeds: seeds, bump: bump}
}

// Account resolves the address this authority acts as.
func (a Authority) Account() AccountID {
	if a.seeds != nil {
		return DeriveWithBump(a.bump, a.seeds...)
	}
	return a.signer
}
