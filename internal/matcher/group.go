package matcher

import (
	"sort"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

// GroupKey identifies one residue aggregation bucket. Aggregation never
// merges across different keys, so per-side totals are preserved exactly.
type GroupKey struct {
	Date         time.Time
	DocumentCode string
}

// Group is one aggregation bucket: its key, the exact sum of its members'
// amounts, and the members themselves in input order.
type Group struct {
	Key     GroupKey
	Total   decimal.Decimal
	Members []*models.Transaction
}

// GroupAndSum buckets transactions by keyFn and sums amounts within each
// bucket. The result is stably ordered by key (date, then document code),
// zero-sum groups are kept, and the input is never mutated. The reporter
// uses the same function to build per-day subtotal rows.
func GroupAndSum(transactions []*models.Transaction, keyFn func(*models.Transaction) GroupKey) []Group {
	byKey := make(map[GroupKey]*Group)
	var order []GroupKey

	for _, t := range transactions {
		key := keyFn(t)
		group, exists := byKey[key]
		if !exists {
			group = &Group{Key: key, Total: decimal.Zero}
			byKey[key] = group
			order = append(order, key)
		}
		group.Total = group.Total.Add(t.Amount)
		group.Members = append(group.Members, t)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if !order[i].Date.Equal(order[j].Date) {
			return order[i].Date.Before(order[j].Date)
		}
		return order[i].DocumentCode < order[j].DocumentCode
	})

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}

	return groups
}

// GroupByDay buckets transactions by calendar day only, ignoring document
// codes. The fee report uses it for daily subtotals.
func GroupByDay(transactions []*models.Transaction) []Group {
	return GroupAndSum(transactions, func(t *models.Transaction) GroupKey {
		return GroupKey{Date: t.Date}
	})
}
