package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBarrierType_Variants(t *testing.T) {
	tests := map[string]BarrierType{
		"down and out": DownAndOut,
		"down-and-out": DownAndOut,
		"down_and_out": DownAndOut,
		" Up And In ":  UpAndIn,
		"UP-AND-OUT":   UpAndOut,
		"down_and_in":  DownAndIn,
	}
	for in, want := range tests {
		got, err := ParseBarrierType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseBarrierType_Unknown(t *testing.T) {
	_, err := ParseBarrierType("double knock out")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseOptionType(t *testing.T) {
	c, err := ParseOptionType("Call")
	require.NoError(t, err)
	assert.Equal(t, Call, c)

	p, err := ParseOptionType("put")
	require.NoError(t, err)
	assert.Equal(t, Put, p)

	_, err = ParseOptionType("straddle")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParsePositionType(t *testing.T) {
	s, err := ParsePositionType("SHORT")
	require.NoError(t, err)
	assert.Equal(t, Short, s)

	_, err = ParsePositionType("")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBarrierType_Flags(t *testing.T) {
	assert.True(t, DownAndOut.IsDown())
	assert.True(t, DownAndIn.IsDown())
	assert.False(t, UpAndOut.IsDown())
	assert.False(t, UpAndIn.IsDown())

	assert.True(t, DownAndOut.IsOut())
	assert.True(t, UpAndOut.IsOut())
	assert.False(t, DownAndIn.IsOut())

	assert.Equal(t, DownAndOut, DownAndIn.Knockout())
	assert.Equal(t, UpAndOut, UpAndIn.Knockout())
	assert.Equal(t, UpAndOut, UpAndOut.Knockout())
}

func TestBarrierType_StringRoundTrip(t *testing.T) {
	for _, b := range []BarrierType{UpAndOut, DownAndOut, UpAndIn, DownAndIn} {
		got, err := ParseBarrierType(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestPositionType_Sign(t *testing.T) {
	assert.Equal(t, 1.0, Long.Sign())
	assert.Equal(t, -1.0, Short.Sign())
}

func validOption() Option {
	return Option{Type: Call, Strike: 100, Maturity: 1, Barrier: 90, BarrierType: DownAndOut}
}

func TestOption_Validate(t *testing.T) {
	require.NoError(t, validOption().Validate())

	bad := []func(*Option){
		func(o *Option) { o.Strike = 0 },
		func(o *Option) { o.Maturity = -1 },
		func(o *Option) { o.Barrier = math.NaN() },
		func(o *Option) { o.Premium = -2 },
		func(o *Option) { o.Strike = math.Inf(1) },
	}
	for i, mutate := range bad {
		o := validOption()
		mutate(&o)
		assert.ErrorIs(t, o.Validate(), ErrInvalidConfig, "case %d", i)
	}
}

func TestOption_CheckBarrierSide(t *testing.T) {
	o := validOption()
	assert.NoError(t, o.CheckBarrierSide(100))
	assert.ErrorIs(t, o.CheckBarrierSide(90), ErrInvalidConfig)
	assert.ErrorIs(t, o.CheckBarrierSide(85), ErrInvalidConfig)

	o.BarrierType = UpAndIn
	o.Barrier = 110
	assert.NoError(t, o.CheckBarrierSide(100))
	assert.ErrorIs(t, o.CheckBarrierSide(110), ErrInvalidConfig)
}

func TestOption_Revenue(t *testing.T) {
	o := validOption()
	o.Premium = 4
	assert.InDelta(t, 6.0, o.Revenue(10), 1e-12)

	o.Position = Short
	assert.InDelta(t, -6.0, o.Revenue(10), 1e-12)
	assert.InDelta(t, 4.0, o.Revenue(0), 1e-12)
}

func TestOption_Terms(t *testing.T) {
	terms := validOption().Terms()
	assert.InDelta(t, 100.0, terms.Strike, 1e-12)
	assert.InDelta(t, math.Log(100), terms.LogStrike, 1e-15)
	assert.InDelta(t, math.Log(90), terms.LogBarrier, 1e-15)
}

func TestMarket_Validate(t *testing.T) {
	assert.NoError(t, Market{Spot: 100, Rate: 0, Sigma: 0.2}.Validate())
	assert.NoError(t, Market{Spot: 100, Rate: -0.01, Sigma: 0.2}.Validate())
	assert.ErrorIs(t, Market{Spot: 0, Rate: 0.1, Sigma: 0.2}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Market{Spot: 100, Rate: 0.1, Sigma: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Market{Spot: 100, Rate: math.NaN(), Sigma: 0.2}.Validate(), ErrInvalidConfig)
}
