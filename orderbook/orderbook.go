// Package orderbook aggregates a point-in-time set of resting orders into
// price levels for display (GET /orderbook). It holds no state between
// calls: spec.md §5 forbids an in-process order book cache, so every call
// to Aggregate builds a fresh tree from rows the caller just queried from
// the store and throws it away when it returns.
package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"ledger-exchange/domain"
)

// PriceLevel is one aggregated rung of the book: every resting order at
// Price, summed into Quantity and Orders.
type PriceLevel struct {
	Price    int64
	Quantity uint64
	Orders   int
}

// Aggregate buckets rows by price and side, using a red-black tree to get
// each side back in priority order for free: bids highest-price-first,
// asks lowest-price-first (spec.md §6's GET /orderbook response shape).
// The tree is grounded on the teacher's ShardedPriceTree, which used the
// same library to order buckets by price; here it orders price levels
// directly since there's no live order stream to shard against.
func Aggregate(rows []domain.Order) (bids, asks []PriceLevel) {
	bidTree := rbt.NewWith[int64, *PriceLevel](descending)
	askTree := rbt.NewWith[int64, *PriceLevel](ascending)

	for _, row := range rows {
		tree := askTree
		if row.Side() == domain.SideBuy {
			tree = bidTree
		}
		level, found := tree.Get(row.Price)
		if !found {
			level = &PriceLevel{Price: row.Price}
			tree.Put(row.Price, level)
		}
		level.Quantity += row.Quantity()
		level.Orders++
	}

	return tree2levels(bidTree), tree2levels(askTree)
}

func tree2levels(tree *rbt.Tree[int64, *PriceLevel]) []PriceLevel {
	values := tree.Values()
	levels := make([]PriceLevel, len(values))
	for i, v := range values {
		levels[i] = *v
	}
	return levels
}

func ascending(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func descending(a, b int64) int {
	return -ascending(a, b)
}
