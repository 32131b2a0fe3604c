package facetlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStripeTableRoundsUpToPowerOfTwo(t *testing.T) {
	st := newStripeTable(5)
	assert.Len(t, st.stripes, 8)
	assert.EqualValues(t, 7, st.mask)
}

func TestStripeTableHashIsStable(t *testing.T) {
	st := newStripeTable(16)
	a := st.for_(42)
	b := st.for_(42)
	assert.Same(t, a, b)
}

func TestStripeTableDistributes(t *testing.T) {
	st := newStripeTable(4)
	m0 := st.for_(0)
	m1 := st.for_(1)
	assert.NotSame(t, m0, m1)
}
