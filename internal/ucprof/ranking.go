package ucprof

import (
	"sort"
)

// RankContexts counts packets per context and orders thread contexts by
// volume, highest first. Ties keep the order in which contexts first appear
// in the trace. Interrupt packets are counted but not ranked.
func RankContexts(packets []Packet) Ranking {
	counts := make(map[uint32]int)
	var order []uint32
	for _, p := range packets {
		if _, seen := counts[p.Context]; !seen {
			order = append(order, p.Context)
		}
		counts[p.Context]++
	}

	ranking := Ranking{Contexts: make([]ContextCount, 0, len(order))}
	for _, ctx := range order {
		if IsInterrupt(ctx) {
			ranking.Interrupts = counts[ctx]
			continue
		}
		ranking.Contexts = append(ranking.Contexts, ContextCount{Context: ctx, Count: counts[ctx]})
	}

	sort.SliceStable(ranking.Contexts, func(i, j int) bool {
		return ranking.Contexts[i].Count > ranking.Contexts[j].Count
	})
	return ranking
}

// Top returns at most n of the highest ranked contexts. n <= 0 selects all.
func (r Ranking) Top(n int) []ContextCount {
	if n > 0 && n < len(r.Contexts) {
		return r.Contexts[:n]
	}
	return r.Contexts
}

// Rank returns the position of ctx in the ranking, or -1.
func (r Ranking) Rank(ctx uint32) int {
	for i, cc := range r.Contexts {
		if cc.Context == ctx {
			return i
		}
	}
	return -1
}
