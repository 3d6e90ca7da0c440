// Package fare splits a ride's base price across a match group.
package fare

// Split returns one member's share of base when groupSize members ride
// together. The division floors; the remainder is not redistributed.
func Split(base, groupSize int) int {
	if groupSize < 1 {
		groupSize = 1
	}
	return base / groupSize
}

// Remainder is the amount lost to flooring when base is split groupSize ways.
func Remainder(base, groupSize int) int {
	if groupSize < 1 {
		groupSize = 1
	}
	return base - Split(base, groupSize)*groupSize
}
