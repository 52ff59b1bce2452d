package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal_Call(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 90}.Terms()
	assert.Equal(t, 0.0, Terminal(Call, terms, math.Log(100)))
	assert.Equal(t, 0.0, Terminal(Call, terms, math.Log(80)))
	assert.InDelta(t, 20.0, Terminal(Call, terms, math.Log(120)), 1e-9)
}

func TestTerminal_Put(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 110}.Terms()
	assert.Equal(t, 0.0, Terminal(Put, terms, math.Log(100)))
	assert.Equal(t, 0.0, Terminal(Put, terms, math.Log(130)))
	assert.InDelta(t, 25.0, Terminal(Put, terms, math.Log(75)), 1e-9)
}

func TestBreached_InclusiveAtBarrier(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 90}.Terms()
	x := math.Log(90)
	assert.True(t, Breached(DownAndOut, terms, x))
	assert.True(t, Breached(DownAndIn, terms, x))
	assert.True(t, Breached(UpAndOut, terms, x))
	assert.False(t, Breached(DownAndOut, terms, x+1e-9))
	assert.False(t, Breached(UpAndOut, terms, x-1e-9))
}

func TestPathPayoff_OutAndIn(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 90}.Terms()
	touched := []float64{math.Log(100), math.Log(89), math.Log(95), math.Log(120)}
	clean := []float64{math.Log(100), math.Log(95), math.Log(110), math.Log(120)}

	assert.Equal(t, 0.0, PathPayoff(Call, DownAndOut, terms, touched))
	assert.InDelta(t, 20.0, PathPayoff(Call, DownAndOut, terms, clean), 1e-9)

	assert.InDelta(t, 20.0, PathPayoff(Call, DownAndIn, terms, touched), 1e-9)
	assert.Equal(t, 0.0, PathPayoff(Call, DownAndIn, terms, clean))

	assert.Equal(t, 0.0, PathPayoff(Call, DownAndOut, terms, nil))
}

func TestPathPayoff_InPlusOutIsVanilla(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 110}.Terms()
	paths := [][]float64{
		{math.Log(100), math.Log(111), math.Log(80)},
		{math.Log(100), math.Log(105), math.Log(80)},
		{math.Log(100), math.Log(105), math.Log(120)},
	}
	for _, p := range paths {
		in := PathPayoff(Put, UpAndIn, terms, p)
		out := PathPayoff(Put, UpAndOut, terms, p)
		assert.InDelta(t, Terminal(Put, terms, p[len(p)-1]), in+out, 1e-12)
	}
}

func TestFirstBreach(t *testing.T) {
	terms := Option{Strike: 100, Barrier: 90}.Terms()
	path := []float64{math.Log(100), math.Log(95), math.Log(90), math.Log(85)}
	assert.Equal(t, 2, FirstBreach(DownAndOut, terms, path))
	// ln 100 ≥ ln 90: para una barrera up la trayectoria cruza en el origen.
	assert.Equal(t, 0, FirstBreach(UpAndOut, terms, path))

	up := Option{Strike: 100, Barrier: 110}.Terms()
	assert.Equal(t, -1, FirstBreach(UpAndOut, up, path))
	rising := []float64{math.Log(100), math.Log(105), math.Log(112)}
	assert.Equal(t, 2, FirstBreach(UpAndOut, up, rising))

	clean := []float64{math.Log(100), math.Log(98), math.Log(91)}
	assert.Equal(t, -1, FirstBreach(DownAndOut, terms, clean))
	assert.Equal(t, -1, FirstBreach(DownAndOut, terms, nil))
}
