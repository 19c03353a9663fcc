package wheel

import (
	"math"
	"math/rand"
)

// Item is a single catalog entry on the wheel. Probability is derived from
// Weight relative to the currently unbanned set and is never set by clients.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
}

// Params controls the spin physics. The defaults match the tuning the
// frontend animation was built against; tests substitute smaller values so a
// full spin finishes in a handful of ticks.
type Params struct {
	// InitialSpeed is the angular speed (radians per tick) while at full speed.
	InitialSpeed float64
	// DecelerationRatio multiplies the speed each tick once deceleration starts.
	DecelerationRatio float64
	// SnapThreshold is the speed at or below which the wheel stops dead.
	SnapThreshold float64
	// AngleSpread bounds the random starting angle, drawn from [-AngleSpread, AngleSpread).
	AngleSpread float64
	// MinFullSpeedTicks and MaxFullSpeedTicks bound the random full-speed duration.
	MinFullSpeedTicks int
	MaxFullSpeedTicks int
}

// DefaultParams returns the production spin tuning.
func DefaultParams() Params {
	return Params{
		InitialSpeed:      0.08,
		DecelerationRatio: 0.989,
		SnapThreshold:     0.002,
		AngleSpread:       10,
		MinFullSpeedTicks: 500,
		MaxFullSpeedTicks: 700,
	}
}

// Wheel simulates a decelerating spin over a weighted item catalog and
// resolves the outcome from the final angle. It knows nothing about players
// or connections; the owning room serializes access and drives Tick.
type Wheel struct {
	params Params
	rng    *rand.Rand

	angle          float64
	speed          float64
	rolling        bool
	fullSpeedTicks int

	catalog []Item
	banned  map[string]struct{}
}

// New creates an idle wheel with an empty catalog. The rng is the sole source
// of non-determinism (starting angle and full-speed duration).
func New(params Params, rng *rand.Rand) *Wheel {
	return &Wheel{
		params: params,
		rng:    rng,
		banned: make(map[string]struct{}),
	}
}

// SetItems replaces the catalog, clears all bans and recomputes probabilities
// over the full set. Catalog order is significant: it defines both display
// order and the cumulative-probability partition used by CurrentItem.
func (w *Wheel) SetItems(items []Item) {
	w.catalog = make([]Item, len(items))
	copy(w.catalog, items)
	w.banned = make(map[string]struct{})
}

// Ban excludes the item with the given id from the selectable set. Banning an
// unknown or already banned id is a no-op.
func (w *Wheel) Ban(id string) {
	if !w.inCatalog(id) {
		return
	}
	w.banned[id] = struct{}{}
}

// Unban restores a previously banned item. Unknown ids are a no-op.
func (w *Wheel) Unban(id string) {
	delete(w.banned, id)
}

// Items returns the unbanned items in catalog order with probabilities
// recomputed so they sum to 1 over the returned slice.
func (w *Wheel) Items() []Item {
	items := make([]Item, 0, len(w.catalog))
	var total float64
	for _, it := range w.catalog {
		if _, ok := w.banned[it.ID]; ok {
			continue
		}
		total += it.Weight
		items = append(items, it)
	}
	for i := range items {
		if total > 0 {
			items[i].Probability = items[i].Weight / total
		}
	}
	return items
}

// BannedItems returns the banned items in catalog order.
func (w *Wheel) BannedItems() []Item {
	items := make([]Item, 0, len(w.banned))
	for _, it := range w.catalog {
		if _, ok := w.banned[it.ID]; ok {
			it.Probability = 0
			items = append(items, it)
		}
	}
	return items
}

// Spin starts a new spin and reports whether it was accepted. A wheel that is
// already rolling rejects the call without touching any state.
func (w *Wheel) Spin() bool {
	if w.rolling {
		return false
	}
	w.rolling = true
	w.speed = w.params.InitialSpeed
	w.angle = -w.params.AngleSpread + w.rng.Float64()*2*w.params.AngleSpread
	w.fullSpeedTicks = w.params.MinFullSpeedTicks
	if spread := w.params.MaxFullSpeedTicks - w.params.MinFullSpeedTicks; spread > 0 {
		w.fullSpeedTicks += w.rng.Intn(spread)
	}
	return true
}

// Tick advances the simulation one step: hold speed while full-speed ticks
// remain, then decay exponentially until the speed snaps to zero. A wheel
// with no selectable items ignores ticks entirely.
func (w *Wheel) Tick() {
	if w.selectableCount() == 0 {
		return
	}
	if w.fullSpeedTicks > 0 {
		w.fullSpeedTicks--
	} else {
		w.speed *= w.params.DecelerationRatio
		if w.speed <= w.params.SnapThreshold {
			w.speed = 0
		}
	}
	if w.speed > 0 {
		w.angle -= w.speed
	} else {
		w.rolling = false
	}
}

// CurrentItem resolves the item under the pointer for the current angle.
// The normalized angle is looked up in the cumulative probability partition
// of the unbanned items; the randomness already happened in Spin, so this is
// deterministic. Returns false only when no items are selectable.
func (w *Wheel) CurrentItem() (Item, bool) {
	items := w.Items()
	if len(items) == 0 {
		return Item{}, false
	}
	ratio := math.Abs(math.Mod(w.angle, 2*math.Pi)) / (2 * math.Pi)
	var sum float64
	for _, it := range items {
		if ratio >= sum && ratio < sum+it.Probability {
			return it, true
		}
		sum += it.Probability
	}
	// Rounding can leave the ratio a hair outside every range.
	return items[len(items)-1], true
}

// Angle returns the current angle in radians.
func (w *Wheel) Angle() float64 { return w.angle }

// Speed returns the current angular speed.
func (w *Wheel) Speed() float64 { return w.speed }

// Rolling reports whether a spin is in progress.
func (w *Wheel) Rolling() bool { return w.rolling }

func (w *Wheel) inCatalog(id string) bool {
	for _, it := range w.catalog {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (w *Wheel) selectableCount() int {
	return len(w.catalog) - len(w.banned)
}
