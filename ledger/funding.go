package ledger

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// FundingSource is the sponsor-wallet boundary. Deposit debits the depositing
// principal before crediting the vault; ClaimReward credits the contributor
// after debiting the vault. The ledger treats it as external custody and only
// requires that Debit fail with ErrInsufficientFunds when the principal's
// balance cannot cover the amount.
type FundingSource interface {
	Debit(ctx context.Context, principal solana.PublicKey, amount uint64) error
	Credit(ctx context.Context, principal solana.PublicKey, amount uint64) error
}

// UnboundedFunding never rejects a debit. It stands in for an external token
// custody integration in dev deployments.
type UnboundedFunding struct{}

func (UnboundedFunding) Debit(ctx context.Context, principal solana.PublicKey, amount uint64) error {
	return nil
}

func (UnboundedFunding) Credit(ctx context.Context, principal solana.PublicKey, amount uint64) error {
	return nil
}

// MemoryWallet is an in-memory FundingSource with explicit per-principal
// balances. Used by tests and local development.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[solana.PublicKey]uint64
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: make(map[solana.PublicKey]uint64)}
}

// SetBalance replaces the balance of a principal.
func (w *MemoryWallet) SetBalance(principal solana.PublicKey, amount uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[principal] = amount
}

// Balance returns the current balance of a principal.
func (w *MemoryWallet) Balance(principal solana.PublicKey) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[principal]
}

func (w *MemoryWallet) Debit(ctx context.Context, principal solana.PublicKey, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[principal] < amount {
		return ErrInsufficientFunds
	}
	w.balances[principal] -= amount
	return nil
}

func (w *MemoryWallet) Credit(ctx context.Context, principal solana.PublicKey, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[principal] += amount
	return nil
}
