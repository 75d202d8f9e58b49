package devices

// Diff computes the membership delta between two device lists, keyed by
// ID alone. added holds next-list elements whose id is absent from prev,
// in next order; removed holds prev-list elements whose id is absent
// from next, in prev order. Name or Connected changes on a matching id
// are not deltas.
func Diff(prev, next []Device) (added, removed []Device) {
	prevIDs := idSet(prev)
	nextIDs := idSet(next)

	for _, d := range next {
		if _, known := prevIDs[d.ID]; !known {
			added = append(added, d)
		}
	}
	for _, d := range prev {
		if _, present := nextIDs[d.ID]; !present {
			removed = append(removed, d)
		}
	}

	return added, removed
}

func idSet(list []Device) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, d := range list {
		set[d.ID] = struct{}{}
	}

	return set
}
