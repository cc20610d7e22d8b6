// Package matching implements the continuous limit order matching algorithm
// against the store, replacing the teacher's in-memory channel/ring-buffer
// engine with one where the store transaction IS the matching loop: there is
// no in-process order book, so "the book" is always whatever the store
// currently holds (spec.md §5).
package matching

import (
	"context"

	"ledger-exchange/apperr"
	"ledger-exchange/domain"
	"ledger-exchange/store"
)

// Engine runs Submit/Cancel/CancelAll against a Store. It holds no order
// book state of its own.
type Engine struct {
	store store.Store
}

// New builds an Engine over st.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// Fill is one leg of a submit's execution, reported back to the caller for
// the HTTP response body.
type Fill struct {
	CounterpartyID int64
	Price          int64
	Quantity       uint64
}

// SubmitResult is everything Submit produces for one incoming order.
type SubmitResult struct {
	LogicalTimestamp int64
	Resting          bool
	Fills            []Fill
}

// Submit inserts an incoming limit order and matches it against the
// resting book in one ACID transaction, following spec.md §4.2's five
// steps:
//  1. insert the incoming order so it gets a logical_timestamp
//  2. fetch marketable resting orders, best-price-first then FIFO
//  3. walk them, eating into the incoming order's remaining quantity
//  4. apply the GTC/IOC remainder rule
//  5. batch-delete exhausted rows and apply balance/stock deltas
func (e *Engine) Submit(ctx context.Context, participantID int64, side domain.Side, price int64, quantity uint64, tif domain.TimeInForce) (SubmitResult, error) {
	if quantity == 0 {
		return SubmitResult{}, apperr.New(apperr.Validation, "quantity must be positive")
	}

	var result SubmitResult
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		incomingAmount := domain.NewAmount(side, quantity)

		logicalTimestamp, err := tx.InsertOrder(ctx, participantID, price, incomingAmount)
		if err != nil {
			return err
		}
		result.LogicalTimestamp = logicalTimestamp

		counterOrders, err := tx.FetchMarketable(ctx, side, price)
		if err != nil {
			return err
		}

		remaining := incomingAmount
		deltas := make(map[int64]store.Delta)
		var fulfilled []int64
		var fills []Fill
		var trades []domain.Trade

		incomingFilled := false
	matchLoop:
		for _, counter := range counterOrders {
			switch {
			case abs(remaining) > abs(counter.Amount):
				// Eat this resting order; incoming order still has appetite left.
				remaining += counter.Amount
				applyDelta(deltas, counter.ParticipantID, participantID, counter.Amount, counter.Price)
				fulfilled = append(fulfilled, counter.LogicalTimestamp)
				trades = append(trades, tradeFor(participantID, counter, side))
				fills = append(fills, Fill{CounterpartyID: counter.ParticipantID, Price: counter.Price, Quantity: absU(counter.Amount)})

			case abs(remaining) == abs(counter.Amount):
				// Eat this resting order; incoming order's appetite is exactly satisfied.
				applyDelta(deltas, counter.ParticipantID, participantID, counter.Amount, counter.Price)
				fulfilled = append(fulfilled, counter.LogicalTimestamp, logicalTimestamp)
				trades = append(trades, tradeFor(participantID, counter, side))
				fills = append(fills, Fill{CounterpartyID: counter.ParticipantID, Price: counter.Price, Quantity: absU(counter.Amount)})
				incomingFilled = true
				break matchLoop

			case abs(remaining) < abs(counter.Amount):
				// Incoming order's appetite is satisfied, but this resting order is
				// bigger than what's left: shrink it instead of deleting it.
				shrunk := counter.Amount + remaining
				if err := tx.UpdateOrderAmount(ctx, counter.LogicalTimestamp, shrunk); err != nil {
					return err
				}
				traded := remaining
				applyDelta(deltas, counter.ParticipantID, participantID, -traded, counter.Price)
				fulfilled = append(fulfilled, logicalTimestamp)
				trades = append(trades, tradeFor(participantID, domain.Order{ParticipantID: counter.ParticipantID, Price: counter.Price, Amount: traded}, side))
				fills = append(fills, Fill{CounterpartyID: counter.ParticipantID, Price: counter.Price, Quantity: absU(traded)})
				incomingFilled = true
				break matchLoop

			default:
				return apperr.New(apperr.InvariantViolation, "matching: unreachable branch reached while walking counter orders")
			}
		}

		if !incomingFilled {
			// The loop ran out of counter orders before the incoming order's
			// appetite was satisfied: it did not get completely fulfilled.
			if tif == domain.GTC {
				if err := tx.UpdateOrderAmount(ctx, logicalTimestamp, remaining); err != nil {
					return err
				}
				result.Resting = true
			} else {
				fulfilled = append(fulfilled, logicalTimestamp)
			}
		}

		if err := tx.DeleteOrders(ctx, fulfilled); err != nil {
			return err
		}
		if err := tx.ApplyBalanceDeltas(ctx, deltas); err != nil {
			return err
		}
		for _, trade := range trades {
			if err := tx.AppendTrade(ctx, trade); err != nil {
				return err
			}
		}

		result.Fills = fills
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// Cancel removes a single resting order if it belongs to participantID.
func (e *Engine) Cancel(ctx context.Context, participantID, logicalTimestamp int64) error {
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.DeleteOwnedOrder(ctx, participantID, logicalTimestamp)
		if err != nil {
			return err
		}
		if !ok {
			// spec.md §7 maps a cancel of a non-owned or missing order to 401,
			// not 400, unlike the other Conflict cases.
			return apperr.New(apperr.Unauthorized, "order not found or not owned by caller")
		}
		return nil
	})
}

// CancelAll removes every resting order owned by participantID and reports
// how many were removed.
func (e *Engine) CancelAll(ctx context.Context, participantID int64) (int, error) {
	var n int
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		ids, err := tx.DeleteAllOwnedOrders(ctx, participantID)
		if err != nil {
			return err
		}
		n = len(ids)
		return nil
	})
	return n, err
}

// applyDelta records the cash transfer for one matched leg: the resting
// side's balance moves by -(counterAmount*price), the incoming side's
// balance moves by the opposite, and both sides' stock move by the traded
// quantity in opposite directions (spec.md §4.2, extending
// original_source/trading_engine/engine.py's balance-only delta to also
// track inventory per the accounts table's stock column).
func applyDelta(deltas map[int64]store.Delta, counterParticipant, incomingParticipant int64, counterAmount, price int64) {
	cash := counterAmount * price

	// counterAmount is already the signed quantity change for the
	// counterparty if this leg executes (negative: sold and lost stock;
	// positive: bought and gained stock). The incoming side gets the
	// mirror image.
	cd := deltas[counterParticipant]
	cd.Balance -= cash
	cd.Stock += counterAmount
	deltas[counterParticipant] = cd

	id := deltas[incomingParticipant]
	id.Balance += cash
	id.Stock -= counterAmount
	deltas[incomingParticipant] = id
}

func tradeFor(incomingParticipant int64, counter domain.Order, incomingSide domain.Side) domain.Trade {
	qty := absU(counter.Amount)
	if incomingSide == domain.SideBuy {
		return domain.Trade{BuyerID: incomingParticipant, SellerID: counter.ParticipantID, Amount: qty, Price: counter.Price}
	}
	return domain.Trade{BuyerID: counter.ParticipantID, SellerID: incomingParticipant, Amount: qty, Price: counter.Price}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func absU(n int64) uint64 {
	if n < 0 {
		return uint64(-n)
	}
	return uint64(n)
}
