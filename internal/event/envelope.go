package event

// Type discriminates event payloads in the log.
type Type int32

const (
	TypeUnknown Type = iota
	TypeMarketCreated
	TypeContributionRecorded
	TypeMarketOpened
	TypeRedeemed
	TypeBought
	TypeSold
	TypeBorrowed
	TypeRepaid
	TypeHealed
	TypeBurned
	TypeTransferred
	TypeFeePaid
	TypeOwnerFeeStatusChanged
	TypeOwnershipTransferred
)

func (t Type) String() string {
	switch t {
	case TypeMarketCreated:
		return "MarketCreated"
	case TypeContributionRecorded:
		return "ContributionRecorded"
	case TypeMarketOpened:
		return "MarketOpened"
	case TypeRedeemed:
		return "Redeemed"
	case TypeBought:
		return "Bought"
	case TypeSold:
		return "Sold"
	case TypeBorrowed:
		return "Borrowed"
	case TypeRepaid:
		return "Repaid"
	case TypeHealed:
		return "Healed"
	case TypeBurned:
		return "Burned"
	case TypeTransferred:
		return "Transferred"
	case TypeFeePaid:
		return "FeePaid"
	case TypeOwnerFeeStatusChanged:
		return "OwnerFeeStatusChanged"
	case TypeOwnershipTransferred:
		return "OwnershipTransferred"
	default:
		return "Unknown"
	}
}

// Envelope wraps every notification a market instance emits. The state
// hash chains over the instance's reserve and ledger state so the event
// log is tamper-evident.
type Envelope struct {
	// Per-instance monotonic sequence assigned by the market.
	Sequence int64

	Instance string

	Type Type

	// Clock reading the operation ran under (epoch microseconds).
	Timestamp int64

	// Event-specific data, JSON-encoded at the persistence boundary.
	Payload any

	// SHA-256 of instance state AFTER this event.
	StateHash [32]byte

	// Previous event's state hash.
	PrevHash [32]byte
}
