package models

// DeriveStatus is the only place bin status is computed. An open pickup
// request pins the status to pickup_requested regardless of level.
func DeriveStatus(level, threshold, capacity float64, openRequest bool) BinStatus {
	switch {
	case openRequest:
		return BinStatusPickupRequested
	case level >= capacity:
		return BinStatusFull
	case level >= threshold:
		return BinStatusWarning
	default:
		return BinStatusNormal
	}
}

// ClampLevel adds qty to level without exceeding capacity.
func ClampLevel(level, qty, capacity float64) float64 {
	if next := level + qty; next < capacity {
		return next
	}
	return capacity
}
