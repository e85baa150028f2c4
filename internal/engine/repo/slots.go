package repo

// pickSlot resolve o slot de uma inscrição. requested == 0 significa
// automático: o menor slot livre. Slots são numerados de 1 a slotCount.
func pickSlot(slotCount int, taken map[int]bool, requested int) (int, error) {
	if requested != 0 {
		if requested < 1 || requested > slotCount {
			return 0, ErrSlotInvalid
		}
		if taken[requested] {
			return 0, ErrSlotTaken
		}
		return requested, nil
	}

	for s := 1; s <= slotCount; s++ {
		if !taken[s] {
			return s, nil
		}
	}
	return 0, ErrNoSlotAvailable
}
