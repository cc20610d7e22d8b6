package domain

// Side is the boundary representation of an order's direction. Internally
// the store and matching engine work with a signed Amount: positive for a
// bid, negative for an ask. Side exists so callers outside the engine never
// have to reason about the sign directly.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// TimeInForce selects whether an unfilled remainder rests on the book
// (GTC) or is discarded (IOC).
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
)

func (t TimeInForce) String() string {
	if t == IOC {
		return "IOC"
	}
	return "GTC"
}

// ParseTimeInForce maps the wire value ("GTC" or "IOC") to a TimeInForce.
func ParseTimeInForce(s string) (TimeInForce, bool) {
	switch s {
	case "GTC":
		return GTC, true
	case "IOC":
		return IOC, true
	default:
		return GTC, false
	}
}

// ParseSide maps the wire value ("buy" or "sell") to a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	default:
		return SideBuy, false
	}
}

// Order is a resting row in the exchange table: (logical_timestamp,
// participant_id, price, amount). Amount is signed: positive is a bid,
// negative is an ask. LogicalTimestamp is the autoincrement primary key
// and doubles as the tie-break clock for price-time priority.
type Order struct {
	LogicalTimestamp int64 `db:"logical_timestamp"`
	ParticipantID    int64 `db:"participant_id"`
	Price            int64 `db:"price"`
	Amount           int64 `db:"amount"`
}

// Side reports the order's direction from the sign of Amount.
func (o Order) Side() Side {
	if o.Amount < 0 {
		return SideSell
	}
	return SideBuy
}

// Quantity is the unsigned size of the order.
func (o Order) Quantity() uint64 {
	if o.Amount < 0 {
		return uint64(-o.Amount)
	}
	return uint64(o.Amount)
}

// NewAmount converts a side and quantity into the signed amount the store
// persists.
func NewAmount(side Side, quantity uint64) int64 {
	if side == SideSell {
		return -int64(quantity)
	}
	return int64(quantity)
}
