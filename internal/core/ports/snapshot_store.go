package ports

import (
	"context"

	"github.com/marketledger/marketledger/internal/ledger"
)

// SnapshotStore is the durable side of the ledger: the write-behind journal
// plus the boot-time load of everything journaled so far.
type SnapshotStore interface {
	ledger.Journal
	LoadSnapshot(ctx context.Context) (ledger.Snapshot, error)
}
