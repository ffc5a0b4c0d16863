package lua

import (
	"math"
	"sort"
)

// Table is the hybrid array+hash container. The array part is
// a dense 1-based region for positive-integer keys; everything else lives
// in the hash part. Iteration order for `next` walks the array part first
// (in index order) then the hash part in insertion order, which is stable
// across mutation exactly as long as no rehash occurs.
type Table struct {
	array     []Value // array[i] holds key i+1
	hash      map[Value]Value
	keys      []Value // hash-part keys in first-insertion order; tombstoned entries keep the key so dead hash slots retain it weakly
	keyIndex  map[Value]int
	Metatable *Table

	weakKeys   bool
	weakValues bool
}

// NewTable constructs an empty table, optionally presized (array/hash
// size hints mirror NEWTABLE's B/C operands in the interpreter).
func NewTable(arraySize, hashSize int) *Table {
	t := &Table{}
	if arraySize > 0 {
		t.array = make([]Value, 0, arraySize)
	}
	if hashSize > 0 {
		t.hash = make(map[Value]Value, hashSize)
		t.keyIndex = make(map[Value]int, hashSize)
	}
	return t
}

func (t *Table) Type() ValueType { return TypeTable }
func (t *Table) String() string  { return ToStringMeta(t) }

func (t *Table) ensureHash() {
	if t.hash == nil {
		t.hash = make(map[Value]Value)
		t.keyIndex = make(map[Value]int)
	}
}

// arrayIndex reports whether key is a valid array-part index (a positive
// integer), independent of the table's current array length.
func arrayIndex(key Value) (int, bool) {
	switch v := key.(type) {
	case Int:
		if v >= 1 {
			return int(v), true
		}
	case Number:
		if iv := int64(v); float64(iv) == float64(v) && iv >= 1 {
			return int(iv), true
		}
	}
	return 0, false
}

// Get performs a raw (non-metamethod) lookup. nil/NaN keys are invalid and
// always miss.
func (t *Table) Get(key Value) Value {
	if key == nil || key.Type() == TypeNil {
		return Nil
	}
	if n, ok := key.(Number); ok && math.IsNaN(float64(n)) {
		return Nil
	}
	if idx, ok := arrayIndex(key); ok && idx >= 1 && idx <= len(t.array) {
		v := t.array[idx-1]
		if v == nil {
			return Nil
		}
		return v
	}
	if t.hash == nil {
		return Nil
	}
	v, ok := t.hash[normalizeKey(key)]
	if !ok || v == nil {
		return Nil
	}
	return v
}

// normalizeKey folds Number keys that hold exact integers onto Int, so that
// t[1] and t[1.0] address the same slot (Lua semantics).
func normalizeKey(key Value) Value {
	if n, ok := key.(Number); ok {
		if iv := int64(n); float64(iv) == float64(n) && iv >= math.MinInt32 && iv <= math.MaxInt32 {
			return Int(iv)
		}
	}
	return key
}

// Set performs a raw (non-metamethod) store. Setting a value to Nil removes
// the key (invariant); `next` will no longer yield it, though the
// hash slot's key may be retained internally to keep concurrent `next`
// walks stable.
func (t *Table) Set(key, val Value) {
	if key == nil || key.Type() == TypeNil {
		panic(&InternalError{Message: "table index is nil"})
	}
	if n, ok := key.(Number); ok && math.IsNaN(float64(n)) {
		panic(&InternalError{Message: "table index is NaN"})
	}
	key = normalizeKey(key)
	isNilVal := val == nil || val.Type() == TypeNil

	if idx, ok := arrayIndex(key); ok {
		if idx <= len(t.array) {
			if isNilVal {
				t.array[idx-1] = nil
			} else {
				t.array[idx-1] = val
			}
			return
		}
		if idx == len(t.array)+1 && !isNilVal {
			t.array = append(t.array, val)
			t.migrateFromHash()
			return
		}
	}

	if isNilVal {
		if t.hash != nil {
			delete(t.hash, key) // value dropped; key's slot in `keys` stays as a tombstone
		}
		return
	}

	t.ensureHash()
	if _, indexed := t.keyIndex[key]; !indexed {
		t.keyIndex[key] = len(t.keys)
		t.keys = append(t.keys, key)
	}
	t.hash[key] = val

	if len(t.hash) >= t.hashSlotCount() {
		t.rehash()
	}
}

func (t *Table) hashSlotCount() int {
	if t.keyIndex == nil {
		return 0
	}
	n := len(t.keyIndex)
	if n == 0 {
		return 1
	}
	return n
}

// migrateFromHash pulls contiguous integer keys that now immediately follow
// the array part out of the hash, growing the array part ("Rehash
// decides the new array size... largest contiguous positive-integer key
// prefix").
func (t *Table) migrateFromHash() {
	if t.hash == nil {
		return
	}
	for {
		next := Int(len(t.array) + 1)
		v, ok := t.hash[next]
		if !ok {
			return
		}
		t.array = append(t.array, v)
		delete(t.hash, next)
		t.removeKeyRecord(next)
	}
}

func (t *Table) removeKeyRecord(key Value) {
	idx, ok := t.keyIndex[key]
	if !ok {
		return
	}
	delete(t.keyIndex, key)
	t.keys[idx] = nil // tombstone: key slot kept so a concurrent `next` walk stays stable until the next rehash
}

// rehash chooses the new array size by grouping
// integer keys into log2 buckets and picking the largest power-of-two size
// for which at least half the array cells would be occupied, then rebuild
// the hash part.
func (t *Table) rehash() {
	counts := make(map[int]int) // log2 bucket -> count of integer keys in that bucket
	for k := range t.hash {
		if iv, ok := k.(Int); ok && iv >= 1 {
			counts[bucketOf(int(iv))]++
		}
	}
	bestSize, bestCount := len(t.array), 0
	acc := 0
	for b := 0; b <= 30; b++ {
		acc += counts[b]
		size := 1 << b
		if acc > size/2 && acc > bestCount {
			bestSize, bestCount = size, acc
		}
	}
	if bestSize > len(t.array) {
		newArray := make([]Value, bestSize)
		copy(newArray, t.array)
		for k, v := range t.hash {
			if iv, ok := k.(Int); ok && int(iv) >= 1 && int(iv) <= bestSize {
				newArray[int(iv)-1] = v
				delete(t.hash, k)
				t.removeKeyRecord(k)
			}
		}
		t.array = newArray
	}

	// compact the key-order slice, dropping tombstones and entries whose
	// value no longer exists.
	newKeys := make([]Value, 0, len(t.hash))
	newIndex := make(map[Value]int, len(t.hash))
	for _, k := range t.keys {
		if k == nil {
			continue
		}
		if t.weakKeys && !reachableElsewhere(k) {
			delete(t.hash, k)
			continue
		}
		if v, ok := t.hash[k]; !ok {
			continue
		} else if t.weakValues && !reachableElsewhere(v) {
			delete(t.hash, k)
			continue
		}
		newIndex[k] = len(newKeys)
		newKeys = append(newKeys, k)
	}
	t.keys = newKeys
	t.keyIndex = newIndex
}

// reachableElsewhere is the hook weak-table modes use to decide whether an
// entry survives a rehash. This module has no tracing garbage collector of
// its own (Go's GC already reclaims everything); weak tables therefore
// degrade to "always reachable" here, which is a conservative (never
// under-collects) approximation documented in DESIGN.md.
func reachableElsewhere(Value) bool { return true }

func bucketOf(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	return b
}

// Len implements `#t`: any border is a valid answer, discovered
// by doubling then binary search, never a cached count.
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && (t.array[n-1] == nil || t.array[n-1].Type() == TypeNil) {
		n--
	}
	if n < len(t.array) {
		return n
	}
	// array part is fully occupied (or empty); look for a border by
	// doubling into the hash part.
	if t.Get(Int(n+1)).Type() == TypeNil {
		return n
	}
	i, j := n+1, n+2
	for t.Get(Int(j)).Type() != TypeNil {
		i = j
		if j > math.MaxInt32/2 {
			k := i
			for t.Get(Int(k+1)).Type() != TypeNil {
				k++
			}
			return k
		}
		j *= 2
	}
	for j-i > 1 {
		m := (i + j) / 2
		if t.Get(Int(m)).Type() != TypeNil {
			i = m
		} else {
			j = m
		}
	}
	return i
}

// Next implements the `next(k)` iteration protocol. Passing Nil
// (or nil) starts the walk. Returns ok=false once exhausted.
func (t *Table) Next(key Value) (Value, Value, bool) {
	if key == nil || key.Type() == TypeNil {
		return t.nextArrayFrom(0)
	}
	if idx, ok := arrayIndex(normalizeKey(key)); ok && idx >= 1 && idx <= len(t.array) {
		return t.nextArrayFrom(idx)
	}
	k := normalizeKey(key)
	pos, ok := t.keyIndex[k]
	if !ok {
		return Nil, Nil, false
	}
	return t.nextHashFrom(pos + 1)
}

func (t *Table) nextArrayFrom(start int) (Value, Value, bool) {
	for i := start; i < len(t.array); i++ {
		if t.array[i] != nil && t.array[i].Type() != TypeNil {
			return Int(i + 1), t.array[i], true
		}
	}
	return t.nextHashFrom(0)
}

func (t *Table) nextHashFrom(pos int) (Value, Value, bool) {
	for i := pos; i < len(t.keys); i++ {
		k := t.keys[i]
		if k == nil {
			continue
		}
		if v, ok := t.hash[k]; ok {
			return k, v, true
		}
	}
	return Nil, Nil, false
}

// ForEach walks every live (k,v) pair exactly once, as long as the table is
// not mutated during the walk (round-trip property). The callback
// returns false to stop early.
func (t *Table) ForEach(fn func(k, v Value) bool) {
	for i, v := range t.array {
		if v != nil && v.Type() != TypeNil {
			if !fn(Int(i+1), v) {
				return
			}
		}
	}
	for _, k := range t.keys {
		if k == nil {
			continue
		}
		if v, ok := t.hash[k]; ok {
			if !fn(k, v) {
				return
			}
		}
	}
}

// Append pushes val onto the end of the array part.
func (t *Table) Append(val Value) {
	t.Set(Int(t.Len()+1), val)
}

// Insert shifts elements at/after pos up by one and stores val at pos
// (1-based), matching table.insert(t, pos, v).
func (t *Table) Insert(pos int, val Value) {
	n := t.Len()
	if pos < 1 {
		pos = 1
	}
	if pos > n+1 {
		pos = n + 1
	}
	for i := n + 1; i > pos; i-- {
		t.Set(Int(i), t.Get(Int(i-1)))
	}
	t.Set(Int(pos), val)
}

// Remove deletes and returns the element at pos (1-based; pos==0 means the
// last element), shifting subsequent elements down by one.
func (t *Table) Remove(pos int) Value {
	n := t.Len()
	if n == 0 {
		return Nil
	}
	if pos == 0 {
		pos = n
	}
	if pos < 1 || pos > n {
		return Nil
	}
	removed := t.Get(Int(pos))
	for i := pos; i < n; i++ {
		t.Set(Int(i), t.Get(Int(i+1)))
	}
	t.Set(Int(n), Nil)
	return removed
}

// Sort orders the array part [1..Len()] using less.
func (t *Table) Sort(less func(a, b Value) bool) {
	n := t.Len()
	vals := make([]Value, n)
	for i := 0; i < n; i++ {
		vals[i] = t.Get(Int(i + 1))
	}
	sort.SliceStable(vals, func(i, j int) bool { return less(vals[i], vals[j]) })
	for i := 0; i < n; i++ {
		t.Set(Int(i+1), vals[i])
	}
}

// Contains is the native implementation behind table.contains:
// tablelib.go charges the fixed instruction cost at the call site; here we
// do the unaccounted linear scan so the charge is independent of table
// size.
func (t *Table) Contains(needle Value) bool {
	found := false
	t.ForEach(func(_, v Value) bool {
		if rawEqual(v, needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Clear removes every key without replacing the table's identity (closures
// that captured this *Table keep observing the cleared state).
func (t *Table) Clear() {
	for i := range t.array {
		t.array[i] = nil
	}
	t.hash = nil
	t.keys = nil
	t.keyIndex = nil
}
