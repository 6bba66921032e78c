// Package sizes orders the sizes of a size group.
//
// Letter sizes from the fixed table come first in table order, then purely numeric sizes in ascending
// numeric order, then everything else in locale collation order.
package sizes

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Size struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	ProductID *int64 `json:"product_id,omitempty" db:"product_id"`
}

// LetterTable is the physical order of letter sizes.
var LetterTable = []string{"XXXS", "XXS", "XS", "S", "M", "L", "XL", "XXL", "XXXL", "XXXXL"}

var letterRank = func() map[string]int {
	m := make(map[string]int, len(LetterTable))
	for i, s := range LetterTable {
		m[s] = i
	}
	return m
}()

var numericName = regexp.MustCompile(`^[0-9]+([.,][0-9]+)?$`)

const (
	classLetter = iota
	classNumeric
	classOther
)

type sortKey struct {
	class  int
	rank   int
	number float64
	name   string
}

func keyOf(name string) sortKey {
	n := strings.ToUpper(strings.TrimSpace(name))
	if r, ok := letterRank[n]; ok {
		return sortKey{class: classLetter, rank: r, name: name}
	}
	if numericName.MatchString(n) {
		f, err := strconv.ParseFloat(strings.Replace(n, ",", ".", 1), 64)
		if err == nil {
			return sortKey{class: classNumeric, number: f, name: name}
		}
	}
	return sortKey{class: classOther, name: name}
}

// Sorter compares size names. A Sorter holds a collator and must not be shared between goroutines.
type Sorter struct {
	coll *collate.Collator
}

// NewSorter returns a Sorter whose fallback collation follows tag.
func NewSorter(tag language.Tag) *Sorter {
	return &Sorter{coll: collate.New(tag, collate.IgnoreCase, collate.Numeric)}
}

// Less reports whether size name a sorts before b.
func (s *Sorter) Less(a, b string) bool {
	return s.less(keyOf(a), keyOf(b))
}

func (s *Sorter) less(ka, kb sortKey) bool {
	if ka.class != kb.class {
		return ka.class < kb.class
	}
	switch ka.class {
	case classLetter:
		return ka.rank < kb.rank
	case classNumeric:
		return ka.number < kb.number
	}
	return s.coll.CompareString(ka.name, kb.name) < 0
}

// Sort sorts sizes in place, stable for equal names.
func (s *Sorter) Sort(list []Size) {
	keys := make([]sortKey, len(list))
	for i := range list {
		keys[i] = keyOf(list[i].Name)
	}
	sort.Stable(&byKey{sizes: list, keys: keys, s: s})
}

type byKey struct {
	sizes []Size
	keys  []sortKey
	s     *Sorter
}

func (b *byKey) Len() int           { return len(b.sizes) }
func (b *byKey) Less(i, j int) bool { return b.s.less(b.keys[i], b.keys[j]) }
func (b *byKey) Swap(i, j int) {
	b.sizes[i], b.sizes[j] = b.sizes[j], b.sizes[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}

// Sort sorts sizes in place with Italian collation for the alphabetic fallback.
func Sort(list []Size) {
	NewSorter(language.Italian).Sort(list)
}

// SortNames sorts plain size names with the same rule as Sort.
func SortNames(names []string) {
	s := NewSorter(language.Italian)
	sort.SliceStable(names, func(i, j int) bool { return s.Less(names[i], names[j]) })
}
