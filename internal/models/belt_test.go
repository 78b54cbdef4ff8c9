package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeltOrdering(t *testing.T) {
	belts := Belts()
	for i, a := range belts {
		for j, b := range belts {
			assert.Equal(t, i < j, a.Index() < b.Index(), "%s vs %s", a, b)
		}
	}
	assert.Equal(t, 0, BeltWhite.Index())
	assert.Equal(t, len(belts)-1, BeltRed.Index())
}

func TestBeltAtLeast(t *testing.T) {
	assert.True(t, BeltPurple.AtLeast(BeltBlue))
	assert.True(t, BeltPurple.AtLeast(BeltPurple))
	assert.False(t, BeltBlue.AtLeast(BeltPurple))
}

func TestBeltOutranks(t *testing.T) {
	assert.True(t, BeltBlue.Outranks(BeltWhite))
	assert.False(t, BeltBlue.Outranks(BeltBlue))
	assert.False(t, BeltWhite.Outranks(BeltBlue))
}

func TestBeltWithinRangeReflexive(t *testing.T) {
	for _, belt := range Belts() {
		max := belt
		assert.True(t, belt.WithinRange(belt, &max), "belt %s not within [%s,%s]", belt, belt, belt)
	}
}

func TestBeltWithinRangeUnboundedMax(t *testing.T) {
	assert.True(t, BeltRed.WithinRange(BeltWhite, nil))
	assert.True(t, BeltBlue.WithinRange(BeltBlue, nil))
	assert.False(t, BeltWhite.WithinRange(BeltBlue, nil))
}

func TestBeltWithinRangeBounded(t *testing.T) {
	max := BeltBrown
	assert.True(t, BeltPurple.WithinRange(BeltBlue, &max))
	assert.False(t, BeltBlack.WithinRange(BeltBlue, &max))
	assert.False(t, BeltWhite.WithinRange(BeltBlue, &max))
}

func TestBeltUnknownValue(t *testing.T) {
	unknown := Belt("VERDE")
	assert.Equal(t, -1, unknown.Index())
	assert.False(t, unknown.Valid())
}

func TestRankPromoteToResetsStripe(t *testing.T) {
	rank := Rank{Belt: BeltWhite, Stripe: StripeThree}
	promoted := rank.PromoteTo(BeltBlue)
	assert.Equal(t, BeltBlue, promoted.Belt)
	assert.Equal(t, StripeZero, promoted.Stripe)
}

func TestStripeValid(t *testing.T) {
	assert.True(t, StripeZero.Valid())
	assert.True(t, StripeFour.Valid())
	assert.False(t, Stripe(5).Valid())
	assert.False(t, Stripe(-1).Valid())
}
