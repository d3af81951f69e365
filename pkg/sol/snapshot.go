package sol

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxSnapshotAccounts is the getMultipleAccounts limit minus the clock sysvar.
const maxSnapshotAccounts = 99

var ErrAccountNotFound = errors.New("account not found")

// Account is the raw state of one account in a snapshot.
type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Snapshot is a set of accounts read at one slot together with the clock of
// that slot. Accounts that do not exist are absent from the map.
type Snapshot struct {
	Slot     uint64
	Clock    Clock
	Accounts map[solana.PublicKey]*Account
}

// AccountReader reads account snapshots. *Client implements it.
type AccountReader interface {
	Snapshot(ctx context.Context, keys ...solana.PublicKey) (*Snapshot, error)
}

// Get returns the account stored under key, or ErrAccountNotFound.
func (s *Snapshot) Get(key solana.PublicKey) (*Account, error) {
	acc, ok := s.Accounts[key]
	if !ok || acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return acc, nil
}

// Has reports whether key exists in the snapshot.
func (s *Snapshot) Has(key solana.PublicKey) bool {
	acc, ok := s.Accounts[key]
	return ok && acc != nil
}

// Snapshot reads keys and the clock sysvar with a single getMultipleAccounts
// call so that every value, including the epoch used for transfer fees,
// comes from the same slot.
func (c *Client) Snapshot(ctx context.Context, keys ...solana.PublicKey) (*Snapshot, error) {
	if len(keys) > maxSnapshotAccounts {
		return nil, fmt.Errorf("snapshot of %d accounts exceeds %d", len(keys), maxSnapshotAccounts)
	}
	query := make([]solana.PublicKey, 0, len(keys)+1)
	query = append(query, solana.SysVarClockPubkey)
	query = append(query, keys...)

	return retry(ctx, c, "getMultipleAccounts", func() (*Snapshot, error) {
		res, err := c.GetMultipleAccountsWithOpts(ctx, query)
		if err != nil {
			return nil, err
		}
		return buildSnapshot(res, query)
	})
}

func buildSnapshot(res *rpc.GetMultipleAccountsResult, query []solana.PublicKey) (*Snapshot, error) {
	if len(res.Value) != len(query) {
		return nil, backoff.Permanent(fmt.Errorf("getMultipleAccounts returned %d accounts for %d keys", len(res.Value), len(query)))
	}
	if res.Value[0] == nil {
		return nil, backoff.Permanent(errors.New("clock sysvar missing from snapshot"))
	}
	clock, err := ParseClock(res.Value[0].Data.GetBinary())
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	snap := &Snapshot{
		Slot:     res.Context.Slot,
		Clock:    *clock,
		Accounts: make(map[solana.PublicKey]*Account, len(query)-1),
	}
	for i, acc := range res.Value[1:] {
		if acc == nil {
			continue
		}
		snap.Accounts[query[i+1]] = &Account{
			Owner:    acc.Owner,
			Lamports: acc.Lamports,
			Data:     acc.Data.GetBinary(),
		}
	}
	return snap, nil
}
