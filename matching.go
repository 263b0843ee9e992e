package dex

import "math"

// fill is one planned cross against a resting maker. get is what the taker
// receives (the maker's sell token), give is what the taker pays.
type fill struct {
	makerID     uint64
	makerOwner  AccountID
	get         uint64
	give        uint64
	makerFilled bool
}

// matchPlan is the outcome of a read-only matching walk. Nothing is mutated
// until every postcondition of the placement has been validated, which is
// what makes the whole operation all-or-nothing.
type matchPlan struct {
	fills         []fill
	getRemaining  uint64
	giveRemaining uint64
}

// unboundedGet marks a walk with no receive budget: the taker's quantity is
// denominated in the give leg (every sell), so only giveBudget bounds it.
const unboundedGet = math.MaxUint64

// planMatch walks the opposite-side queue from the best price and computes
// the fills a taker would execute.
//
// tBuy0/tSell0 are the taker's original quantities and fix its limit price;
// they are ignored when limitPrice is false (market orders cross at whatever
// the book offers). giveBudget is what the taker can pay out; getBudget
// bounds what it receives, or is unboundedGet for give-denominated takers.
//
// Each cross is anchored on the taker's bounded leg against the maker's
// matching leg, with the other leg derived at the maker's price. On a
// partial maker fill the derived leg rounds in the maker's favor: a maker
// paying out a fraction of its lot pays the floor, a maker selling a
// fraction receives the ceiling.
//
// Fills consume makers strictly from the front of the queue: every fill but
// the last removes its maker entirely, so the commit step can apply them as
// repeated head operations.
func planMatch(target *orderQueue, tBuy0, tSell0, getBudget, giveBudget uint64, limitPrice bool) matchPlan {
	plan := matchPlan{
		getRemaining:  getBudget,
		giveRemaining: giveBudget,
	}
	anchorGive := getBudget == unboundedGet

	for i := 0; i < target.len(); i++ {
		m := target.at(i)
		if limitPrice && !crosses(tBuy0, tSell0, m) {
			break
		}

		var get, give uint64
		if anchorGive {
			give = plan.giveRemaining
			if m.BuyQuantity < give {
				give = m.BuyQuantity
			}
			get = m.SellQuantity
			if give < m.BuyQuantity {
				get = mulDiv(give, m.SellQuantity, m.BuyQuantity)
			}
		} else {
			get = plan.getRemaining
			if m.SellQuantity < get {
				get = m.SellQuantity
			}
			give = m.BuyQuantity
			if get < m.SellQuantity {
				give = mulDivCeil(get, m.BuyQuantity, m.SellQuantity)
				if give == m.BuyQuantity {
					// Never consume the maker's full ask for a partial lot.
					give--
				}
			}
			if give > plan.giveRemaining {
				give = plan.giveRemaining
				get = mulDiv(give, m.SellQuantity, m.BuyQuantity)
			}
		}
		if get == 0 || give == 0 {
			break
		}

		makerFilled := give == m.BuyQuantity
		plan.fills = append(plan.fills, fill{
			makerID:     m.ID,
			makerOwner:  m.Owner,
			get:         get,
			give:        give,
			makerFilled: makerFilled,
		})

		if plan.getRemaining != unboundedGet {
			plan.getRemaining -= get
		}
		plan.giveRemaining -= give

		if plan.getRemaining == 0 || plan.giveRemaining == 0 {
			break
		}
		if !makerFilled {
			// Partial fill leaves the maker resting; the taker is done.
			break
		}
	}

	return plan
}

// events reports how many settlement events committing this plan will emit.
// Market placements append one extra unlock event when part of the
// speculative lock was not consumed.
func (p *matchPlan) events(market bool) int {
	n := len(p.fills)
	if market && p.giveRemaining > 0 {
		n++
	}
	return n
}

// resting reports whether a limit placement leaves a remainder to insert.
func (p *matchPlan) resting() bool {
	return p.getRemaining > 0 && p.giveRemaining > 0
}
