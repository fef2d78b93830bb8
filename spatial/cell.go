package spatial

// CellCapacity is the number of refs stored inline in a Cell.
// 15 * 4 (Refs) + 1 (Count) + 24 (spill header) keeps a cell within 96 bytes.
const CellCapacity = 15

// Ref identifies an indexed object, normally an actor slot.
type Ref uint32

// Cell is one grid bucket. Refs past CellCapacity go to a spill slice so a
// crowded cell degrades to a slice scan instead of dropping members.
type Cell struct {
	Count uint8
	Refs  [CellCapacity]Ref
	spill []Ref
}

// Len returns the number of refs in the cell.
func (c *Cell) Len() int {
	return int(c.Count) + len(c.spill)
}

// Has reports whether ref is a member.
func (c *Cell) Has(ref Ref) bool {
	for i := uint8(0); i < c.Count; i++ {
		if c.Refs[i] == ref {
			return true
		}
	}
	for _, r := range c.spill {
		if r == ref {
			return true
		}
	}
	return false
}

// add appends ref and reports whether it had to spill.
func (c *Cell) add(ref Ref) bool {
	if c.Count < CellCapacity {
		c.Refs[c.Count] = ref
		c.Count++
		return false
	}
	c.spill = append(c.spill, ref)
	return true
}

// remove deletes one occurrence of ref using swap-remove.
// The inline array stays dense: a spilled ref backfills the freed slot.
func (c *Cell) remove(ref Ref) bool {
	for i := uint8(0); i < c.Count; i++ {
		if c.Refs[i] != ref {
			continue
		}
		last := c.Count - 1
		c.Refs[i] = c.Refs[last]
		if n := len(c.spill); n > 0 {
			c.Refs[last] = c.spill[n-1]
			c.spill = c.spill[:n-1]
		} else {
			c.Refs[last] = 0
			c.Count--
		}
		return true
	}
	for i, r := range c.spill {
		if r == ref {
			n := len(c.spill) - 1
			c.spill[i] = c.spill[n]
			c.spill = c.spill[:n]
			return true
		}
	}
	return false
}

// each calls yield for every member until it returns false.
func (c *Cell) each(yield func(Ref) bool) bool {
	for i := uint8(0); i < c.Count; i++ {
		if !yield(c.Refs[i]) {
			return false
		}
	}
	for _, r := range c.spill {
		if !yield(r) {
			return false
		}
	}
	return true
}

func (c *Cell) clear() {
	c.Count = 0
	c.spill = c.spill[:0]
}
