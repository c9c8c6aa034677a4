package core

import (
	"sort"
)

// AggregateSenders groups records by sender, most frequent first with ties broken
// by sender. Subjects are the sender's most recent ones, newest first.
// A limit of 0 keeps every sender.
func AggregateSenders(records []EmailRecord, limit, maxSubjects int) []SenderAggregate {
	bySender := make(map[string][]EmailRecord)
	for _, r := range records {
		if r.Sender == "" {
			continue
		}
		bySender[r.Sender] = append(bySender[r.Sender], r)
	}

	aggs := make([]SenderAggregate, 0, len(bySender))
	for sender, recs := range bySender {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Date.After(recs[j].Date)
		})
		agg := SenderAggregate{Sender: sender, Count: len(recs), LastDate: recs[0].Date}
		for i, r := range recs {
			if maxSubjects > 0 && i >= maxSubjects {
				break
			}
			agg.Subjects = append(agg.Subjects, r.Subject)
		}
		aggs = append(aggs, agg)
	}

	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].Count != aggs[j].Count {
			return aggs[i].Count > aggs[j].Count
		}
		return aggs[i].Sender < aggs[j].Sender
	})
	if limit > 0 && len(aggs) > limit {
		aggs = aggs[:limit]
	}
	return aggs
}
