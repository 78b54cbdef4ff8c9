package models

// Belt represents a grading tier. The zero-indexed position in beltOrder is
// the canonical rank used for all comparisons.
type Belt string

const (
	BeltWhite  Belt = "BLANCA"
	BeltBlue   Belt = "AZUL"
	BeltPurple Belt = "PURPURA"
	BeltBrown  Belt = "MARRON"
	BeltBlack  Belt = "NEGRA"
	BeltCoral  Belt = "CORAL"
	BeltRed    Belt = "ROJA"
)

var beltOrder = []Belt{BeltWhite, BeltBlue, BeltPurple, BeltBrown, BeltBlack, BeltCoral, BeltRed}

// Belts returns the canonical belt sequence in ascending rank order.
func Belts() []Belt {
	out := make([]Belt, len(beltOrder))
	copy(out, beltOrder)
	return out
}

// Index returns the position of the belt in the canonical order, or -1 for an
// unknown value.
func (b Belt) Index() int {
	for i, belt := range beltOrder {
		if belt == b {
			return i
		}
	}
	return -1
}

// Valid returns true when the belt is a supported value.
func (b Belt) Valid() bool {
	return b.Index() >= 0
}

// AtLeast reports whether the belt ranks at or above the threshold.
func (b Belt) AtLeast(threshold Belt) bool {
	return b.Index() >= threshold.Index()
}

// Outranks reports whether the belt ranks strictly above the other.
func (b Belt) Outranks(other Belt) bool {
	return b.Index() > other.Index()
}

// WithinRange reports whether the belt falls within [min, max]. A nil max
// means the range is unbounded above.
func (b Belt) WithinRange(min Belt, max *Belt) bool {
	if !b.AtLeast(min) {
		return false
	}
	if max == nil {
		return true
	}
	return max.AtLeast(b)
}

// Stripe is the 0-4 sub-rank within a belt.
type Stripe int

const (
	StripeZero Stripe = iota
	StripeOne
	StripeTwo
	StripeThree
	StripeFour
)

// Valid returns true when the stripe is within the supported range.
func (s Stripe) Valid() bool {
	return s >= StripeZero && s <= StripeFour
}

// Rank pairs a belt with its stripe count. The stripe is meaningful only
// relative to the belt, so rank changes go through PromoteTo rather than
// independent field writes.
type Rank struct {
	Belt   Belt   `db:"belt" json:"belt"`
	Stripe Stripe `db:"stripe" json:"stripe"`
}

// PromoteTo returns the rank after a belt promotion. Moving to a new belt
// always resets the stripe count to zero.
func (r Rank) PromoteTo(belt Belt) Rank {
	return Rank{Belt: belt, Stripe: StripeZero}
}
