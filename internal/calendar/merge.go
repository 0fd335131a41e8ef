package calendar

import "sort"

// Merge combines the native read-model items with any number of
// provider-fetched item sets into one de-duplicated, consistently ordered
// list.
//
// De-duplication rule: a provider event that the platform already mirrors as
// a native event (the native event carries that provider id) must not be
// shown twice; the native item wins.
//
// Ordering: ascending by Start using lexicographic comparison, which is
// valid because every Item.Start is a Z-suffixed UTC ISO-8601 string
// (FormatInstant guarantees it). The sort is stable so items with equal
// starts keep their relative input order across repeated runs.
func Merge(native []Item, providerSets ...[]Item) []Item {
	linked := make(map[string]struct{})
	total := len(native)
	for _, it := range native {
		if it.GoogleEventID != "" {
			linked[it.GoogleEventID] = struct{}{}
		}
		if it.OutlookEventID != "" {
			linked[it.OutlookEventID] = struct{}{}
		}
	}

	for _, set := range providerSets {
		total += len(set)
	}

	out := make([]Item, 0, total)
	out = append(out, native...)
	for _, set := range providerSets {
		for _, it := range set {
			if _, ok := linked[it.ProviderEventID]; ok {
				continue
			}
			out = append(out, it)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
