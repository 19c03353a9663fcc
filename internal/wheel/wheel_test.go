package wheel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWheel(t *testing.T, items ...Item) *Wheel {
	t.Helper()
	w := New(DefaultParams(), rand.New(rand.NewSource(1)))
	w.SetItems(items)
	return w
}

func fruitItems() []Item {
	return []Item{
		{ID: "1", Name: "apple", Weight: 1},
		{ID: "2", Name: "banana", Weight: 3},
	}
}

func TestProbabilitiesSumToOne(t *testing.T) {
	w := testWheel(t,
		Item{ID: "1", Name: "a", Weight: 0.5},
		Item{ID: "2", Name: "b", Weight: 2},
		Item{ID: "3", Name: "c", Weight: 7.25},
	)

	var sum float64
	for _, it := range w.Items() {
		sum += it.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	w.Ban("2")
	sum = 0
	for _, it := range w.Items() {
		sum += it.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestWeightedProbabilities(t *testing.T) {
	w := testWheel(t, fruitItems()...)

	items := w.Items()
	require.Len(t, items, 2)
	assert.InDelta(t, 0.25, items[0].Probability, 1e-9)
	assert.InDelta(t, 0.75, items[1].Probability, 1e-9)

	w.Ban("1")
	items = w.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "banana", items[0].Name)
	assert.InDelta(t, 1.0, items[0].Probability, 1e-9)

	w.Unban("1")
	items = w.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "apple", items[0].Name)
	assert.InDelta(t, 0.25, items[0].Probability, 1e-9)
	assert.InDelta(t, 0.75, items[1].Probability, 1e-9)
}

func TestBanUnbanRoundTrip(t *testing.T) {
	w := testWheel(t,
		Item{ID: "1", Name: "a", Weight: 1},
		Item{ID: "2", Name: "b", Weight: 2},
		Item{ID: "3", Name: "c", Weight: 3},
	)
	before := w.Items()

	w.Ban("2")
	w.Ban("2") // idempotent
	w.Unban("2")
	w.Unban("2")

	assert.Equal(t, before, w.Items())
	assert.Empty(t, w.BannedItems())
}

func TestBanUnknownItemIsNoop(t *testing.T) {
	w := testWheel(t, fruitItems()...)
	w.Ban("nope")
	assert.Len(t, w.Items(), 2)
	assert.Empty(t, w.BannedItems())
}

func TestCurrentItemAlwaysResolves(t *testing.T) {
	w := testWheel(t, fruitItems()...)

	for _, angle := range []float64{0, -0.1, -math.Pi, -2 * math.Pi, -200 * math.Pi, 37.5, -1e6} {
		w.angle = angle
		it, ok := w.CurrentItem()
		require.True(t, ok, "angle %v", angle)
		assert.Contains(t, []string{"apple", "banana"}, it.Name)
	}
}

func TestCurrentItemAtZeroAngle(t *testing.T) {
	w := testWheel(t, fruitItems()...)
	w.angle = 0
	it, ok := w.CurrentItem()
	require.True(t, ok)
	// ratio 0 falls in the first item's range.
	assert.Equal(t, "apple", it.Name)
}

func TestCurrentItemEmptyWheel(t *testing.T) {
	w := testWheel(t)
	_, ok := w.CurrentItem()
	assert.False(t, ok)

	w.SetItems(fruitItems())
	w.Ban("1")
	w.Ban("2")
	_, ok = w.CurrentItem()
	assert.False(t, ok)
}

func TestSpinWhileRollingRejected(t *testing.T) {
	w := testWheel(t, fruitItems()...)
	require.True(t, w.Spin())

	angle, speed := w.Angle(), w.Speed()
	assert.False(t, w.Spin())
	assert.Equal(t, angle, w.Angle())
	assert.Equal(t, speed, w.Speed())
	assert.True(t, w.Rolling())
}

func TestSpinRunsToIdle(t *testing.T) {
	params := Params{
		InitialSpeed:      0.08,
		DecelerationRatio: 0.5,
		SnapThreshold:     0.002,
		AngleSpread:       10,
		MinFullSpeedTicks: 5,
		MaxFullSpeedTicks: 10,
	}
	w := New(params, rand.New(rand.NewSource(42)))
	w.SetItems(fruitItems())

	require.True(t, w.Spin())

	ticks := 0
	for w.Speed() > 0 {
		angle := w.Angle()
		w.Tick()
		if w.Speed() > 0 {
			assert.Less(t, w.Angle(), angle, "angle decreases while spinning")
		}
		ticks++
		require.Less(t, ticks, 10_000, "spin must terminate")
	}

	assert.False(t, w.Rolling())
	assert.Zero(t, w.Speed())

	// Wheel is idle again, so a new spin is accepted.
	assert.True(t, w.Spin())
}

func TestTickEmptyWheelIsNoop(t *testing.T) {
	w := testWheel(t)
	w.angle = -1
	w.speed = 0.08
	w.Tick()
	assert.Equal(t, -1.0, w.Angle())
	assert.Equal(t, 0.08, w.Speed())
}
