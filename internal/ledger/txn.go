package ledger

import (
	"encoding/json"
	"fmt"

	"auction_go/pkg/safe"
)

// Txn stages reads and writes for one transaction. Reads see staged writes
// first, then the committed state. A nil staged pointer marks a closed
// account. Nothing touches the underlying ledger until commit.
type Txn struct {
	l       *Ledger
	tokens  map[AccountID]*TokenAccount
	records map[AccountID]*Record
	native  map[AccountID]uint64
	mints   map[AccountID]Mint
}

func (tx *Txn) commit() {
	for id, m := range tx.mints {
		tx.l.mints[id] = m
	}
	for id, t := range tx.tokens {
		if t == nil {
			delete(tx.l.tokens, id)
		} else {
			tx.l.tokens[id] = t
		}
	}
	for id, r := range tx.records {
		if r == nil {
			delete(tx.l.records, id)
		} else {
			tx.l.records[id] = r
		}
	}
	for id, amt := range tx.native {
		if amt == 0 {
			delete(tx.l.native, id)
		} else {
			tx.l.native[id] = amt
		}
	}
}

// ---------------------------------------------------------------------------
// Mints
// ---------------------------------------------------------------------------

// CreateMint registers a new asset type.
func (tx *Txn) CreateMint(decimals uint8) Mint {
	m := Mint{ID: NewKeyID(), Decimals: decimals}
	tx.mints[m.ID] = m
	return m
}

// Mint looks up an asset type.
func (tx *Txn) Mint(id AccountID) (Mint, error) {
	if m, ok := tx.mints[id]; ok {
		return m, nil
	}
	if m, ok := tx.l.mints[id]; ok {
		return m, nil
	}
	return Mint{}, fmt.Errorf("mint %s: %w", id, ErrAccountNotFound)
}

// ---------------------------------------------------------------------------
// Token accounts
// ---------------------------------------------------------------------------

func (tx *Txn) stagedToken(id AccountID) (*TokenAccount, bool) {
	if t, ok := tx.tokens[id]; ok {
		return t, true
	}
	if t, ok := tx.l.tokens[id]; ok {
		cp := *t
		tx.tokens[id] = &cp
		return &cp, true
	}
	return nil, false
}

// CreateTokenAccount opens an empty token account at id, reserving rent from
// the payer's native balance.
func (tx *Txn) CreateTokenAccount(id, mint, authority, payer AccountID) error {
	if t, ok := tx.stagedToken(id); ok && t != nil {
		return fmt.Errorf("token account %s: %w", id, ErrAccountExists)
	}
	if _, err := tx.Mint(mint); err != nil {
		return err
	}
	if err := tx.DebitNative(payer, AccountRent); err != nil {
		return err
	}
	tx.tokens[id] = &TokenAccount{ID: id, Mint: mint, Authority: authority}
	return nil
}

// Token returns a copy of the token account at id.
func (tx *Txn) Token(id AccountID) (TokenAccount, error) {
	t, ok := tx.stagedToken(id)
	if !ok || t == nil {
		return TokenAccount{}, fmt.Errorf("token account %s: %w", id, ErrAccountNotFound)
	}
	return *t, nil
}

// HasToken reports whether a token account exists at id.
func (tx *Txn) HasToken(id AccountID) bool {
	t, ok := tx.stagedToken(id)
	return ok && t != nil
}

// MintTo issues new supply into a token account. This is the substrate's
// genesis/faucet primitive; the engine itself never mints.
func (tx *Txn) MintTo(id AccountID, amount uint64) error {
	t, ok := tx.stagedToken(id)
	if !ok || t == nil {
		return fmt.Errorf("token account %s: %w", id, ErrAccountNotFound)
	}
	sum, ok := safe.Add(t.Amount, amount)
	if !ok {
		return ErrBalanceOverflow
	}
	t.Amount = sum
	return nil
}

// AssociatedTokenAddress derives the canonical token account address for an
// (owner, mint) pair. Discovery needs no index: anyone can re-derive it.
func AssociatedTokenAddress(owner, mint AccountID) (AccountID, uint8) {
	return Derive([]byte("token"), owner.Bytes(), mint.Bytes())
}

// EnsureAssociated returns the associated token account for (owner, mint),
// creating it with payer's rent if it does not exist yet.
func (tx *Txn) EnsureAssociated(owner, mint, payer AccountID) (AccountID, error) {
	id, _ := AssociatedTokenAddress(owner, mint)
	if tx.HasToken(id) {
		return id, nil
	}
	if err := tx.CreateTokenAccount(id, mint, owner, payer); err != nil {
		return AccountID{}, err
	}
	return id, nil
}

// Transfer moves amount between two token accounts of the same mint. The
// authority must resolve to the source account's recorded authority. Source
// and destination must differ; both resolve to one staged account, so a
// self-transfer would credit against the pre-debit balance.
func (tx *Txn) Transfer(from, to AccountID, amount uint64, auth Authority) error {
	if from == to {
		return ErrSelfTransfer
	}
	src, ok := tx.stagedToken(from)
	if !ok || src == nil {
		return fmt.Errorf("transfer source %s: %w", from, ErrAccountNotFound)
	}
	dst, ok := tx.stagedToken(to)
	if !ok || dst == nil {
		return fmt.Errorf("transfer destination %s: %w", to, ErrAccountNotFound)
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if auth.Account() != src.Authority {
		return ErrUnauthorized
	}
	if amount > src.Amount {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from, src.Amount, ErrInsufficientFunds)
	}
	sum, ok := safe.Add(dst.Amount, amount)
	if !ok {
		return ErrBalanceOverflow
	}
	src.Amount -= amount
	dst.Amount = sum
	return nil
}

// CloseTokenAccount deallocates an empty token account, refunding its rent to
// destination. Closing an account that still holds funds fails.
func (tx *Txn) CloseTokenAccount(id, destination AccountID, auth Authority) error {
	t, ok := tx.stagedToken(id)
	if !ok || t == nil {
		return fmt.Errorf("close %s: %w", id, ErrAccountNotFound)
	}
	if auth.Account() != t.Authority {
		return ErrUnauthorized
	}
	if t.Amount != 0 {
		return fmt.Errorf("close %s holding %d: %w", id, t.Amount, ErrVaultNotEmpty)
	}
	tx.tokens[id] = nil
	tx.CreditNative(destination, AccountRent)
	return nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func (tx *Txn) stagedRecord(id AccountID) (*Record, bool) {
	if r, ok := tx.records[id]; ok {
		return r, true
	}
	if r, ok := tx.l.records[id]; ok {
		cp := Record{Kind: r.Kind, Data: append([]byte(nil), r.Data...)}
		tx.records[id] = &cp
		return &cp, true
	}
	return nil, false
}

// CreateRecord stores v as a new typed record at id, reserving rent from payer.
func (tx *Txn) CreateRecord(id AccountID, kind string, v any, payer AccountID) error {
	if r, ok := tx.stagedRecord(id); ok && r != nil {
		return fmt.Errorf("record %s: %w", id, ErrAccountExists)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	if err := tx.DebitNative(payer, AccountRent); err != nil {
		return err
	}
	tx.records[id] = &Record{Kind: kind, Data: data}
	return nil
}

// Record decodes the record at id into v.
func (tx *Txn) Record(id AccountID, kind string, v any) error {
	r, ok := tx.stagedRecord(id)
	if !ok || r == nil || r.Kind != kind {
		return fmt.Errorf("%s record %s: %w", kind, id, ErrAccountNotFound)
	}
	return json.Unmarshal(r.Data, v)
}

// HasRecord reports whether any record exists at id.
func (tx *Txn) HasRecord(id AccountID) bool {
	r, ok := tx.stagedRecord(id)
	return ok && r != nil
}

// UpdateRecord overwrites an existing record's body.
func (tx *Txn) UpdateRecord(id AccountID, kind string, v any) error {
	r, ok := tx.stagedRecord(id)
	if !ok || r == nil || r.Kind != kind {
		return fmt.Errorf("%s record %s: %w", kind, id, ErrAccountNotFound)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	r.Data = data
	return nil
}

// CloseRecord deallocates a record, refunding its rent to destination.
func (tx *Txn) CloseRecord(id, destination AccountID) error {
	r, ok := tx.stagedRecord(id)
	if !ok || r == nil {
		return fmt.Errorf("record %s: %w", id, ErrAccountNotFound)
	}
	tx.records[id] = nil
	tx.CreditNative(destination, AccountRent)
	return nil
}

// ---------------------------------------------------------------------------
// Native (rent) balances
// ---------------------------------------------------------------------------

func (tx *Txn) nativeBalance(id AccountID) uint64 {
	if amt, ok := tx.native[id]; ok {
		return amt
	}
	return tx.l.native[id]
}

// NativeBalance returns the rent-currency balance of id.
func (tx *Txn) NativeBalance(id AccountID) uint64 {
	return tx.nativeBalance(id)
}

// CreditNative adds native funds to id. Saturates are not possible in
// practice (rent sums are tiny), but the add is still checked.
func (tx *Txn) CreditNative(id AccountID, amount uint64) {
	sum, ok := safe.Add(tx.nativeBalance(id), amount)
	if !ok {
		panic("ledger: native balance overflow")
	}
	tx.native[id] = sum
}

// DebitNative removes native funds from id.
func (tx *Txn) DebitNative(id AccountID, amount uint64) error {
	bal := tx.nativeBalance(id)
	if amount > bal {
		return fmt.Errorf("debit %d from %s (balance %d): %w", amount, id, bal, ErrInsufficientRent)
	}
	tx.native[id] = bal - amount
	return nil
}
