// Package ledger is the account substrate under the auction engine: token
// custody accounts, typed state records at derived addresses, flat refundable
// rent, and an all-or-nothing transaction boundary. It knows nothing about
// auctions; the engine expresses every operation as one Execute call.
package ledger

import (
	"errors"
	"sync"
)

var (
	// ErrAccountNotFound is returned when a token account or record does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account at an occupied address.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a transfer exceeds the source balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientRent is returned when a payer cannot cover account rent.
	ErrInsufficientRent = errors.New("insufficient rent balance")

	// ErrMintMismatch is returned when a transfer crosses token accounts of different mints.
	ErrMintMismatch = errors.New("mint mismatch")

	// ErrUnauthorized is returned when an authority does not match the account owner.
	ErrUnauthorized = errors.New("authority mismatch")

	// ErrVaultNotEmpty is returned when closing a token account that still holds funds.
	ErrVaultNotEmpty = errors.New("token account not empty")

	// ErrBalanceOverflow is returned when a credit would wrap a balance.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrSelfTransfer is returned when a transfer names the same account as
	// source and destination.
	ErrSelfTransfer = errors.New("transfer to self")
)

// AccountRent is the flat native deposit reserved when any account is
// created and refunded in full when it is closed.
const AccountRent uint64 = 1_000

// Record is an opaque typed state blob stored at a derived address.
type Record struct {
	Kind string
	Data []byte
}

// Ledger holds all accounts. Transactions are conflict-serialized by a single
// mutex: Execute admits one transaction at a time, and a failed transaction
// leaves no trace (all writes are staged in the Txn until commit).
type Ledger struct {
	mu      sync.Mutex
	mints   map[AccountID]Mint
	tokens  map[AccountID]*TokenAccount
	records map[AccountID]*Record
	native  map[AccountID]uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		mints:   make(map[AccountID]Mint),
		tokens:  make(map[AccountID]*TokenAccount),
		records: make(map[AccountID]*Record),
		native:  make(map[AccountID]uint64),
	}
}

// Execute runs fn inside a transaction. If fn returns nil every staged write
// commits atomically; on error the ledger is untouched. fn must not retain
// the Txn beyond its return.
func (l *Ledger) Execute(fn func(tx *Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Txn{
		l:       l,
		tokens:  make(map[AccountID]*TokenAccount),
		records: make(map[AccountID]*Record),
		native:  make(map[AccountID]uint64),
		mints:   make(map[AccountID]Mint),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// View runs fn with read access under the ledger lock. Writes made through
// the Txn are discarded.
func (l *Ledger) View(fn func(tx *Txn)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Txn{
		l:       l,
		tokens:  make(map[AccountID]*TokenAccount),
		records: make(map[AccountID]*Record),
		native:  make(map[AccountID]uint64),
		mints:   make(map[AccountID]Mint),
	}
	fn(tx)
}

// SnapshotEntry types used for persistence.
type (
	RecordEntry struct {
		ID   AccountID
		Kind string
		Data []byte
	}
	NativeEntry struct {
		ID     AccountID
		Amount uint64
	}
	Snapshot struct {
		Mints   []Mint
		Tokens  []TokenAccount
		Records []RecordEntry
		Native  []NativeEntry
	}
)

// Snapshot copies the full ledger state for persistence.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{}
	for _, m := range l.mints {
		snap.Mints = append(snap.Mints, m)
	}
	for _, t := range l.tokens {
		snap.Tokens = append(snap.Tokens, *t)
	}
	for id, r := range l.records {
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		snap.Records = append(snap.Records, RecordEntry{ID: id, Kind: r.Kind, Data: data})
	}
	for id, amt := range l.native {
		snap.Native = append(snap.Native, NativeEntry{ID: id, Amount: amt})
	}
	return snap
}

// Restore replaces the ledger state with a snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mints = make(map[AccountID]Mint, len(snap.Mints))
	l.tokens = make(map[AccountID]*TokenAccount, len(snap.Tokens))
	l.records = make(map[AccountID]*Record, len(snap.Records))
	l.native = make(map[AccountID]uint64, len(snap.Native))

	for _, m := range snap.Mints {
		l.mints[m.ID] = m
	}
	for _, t := range snap.Tokens {
		tc := t
		l.tokens[t.ID] = &tc
	}
	for _, r := range snap.Records {
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		l.records[r.ID] = &Record{Kind: r.Kind, Data: data}
	}
	for _, n := range snap.Native {
		l.native[n.ID] = n.Amount
	}
}
