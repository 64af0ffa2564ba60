package domain

import "math/bits"

// Cells is the number of squares on the board.
const Cells = 9

// Mask is a 9-bit occupancy set: bit i is set iff cell i is taken.
type Mask uint16

// Full has every cell set.
const Full Mask = 1<<Cells - 1

func (m Mask) Has(i int) bool {
    if i < 0 || i >= Cells {
        return false
    }
    return m&(1<<uint(i)) != 0
}

// With returns m with cell i set.
func (m Mask) With(i int) Mask {
    return m | 1<<uint(i)
}

func (m Mask) Count() int { return bits.OnesCount16(uint16(m)) }

// Cells lists the set cell indices in ascending order.
func (m Mask) Cells() []int {
    out := make([]int, 0, m.Count())
    for v := m & Full; v != 0; v &= v - 1 {
        out = append(out, bits.TrailingZeros16(uint16(v)))
    }
    return out
}
