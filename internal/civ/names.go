package civ

import (
	"fmt"
	"math/rand"
)

const birmingham = "The Birmingham Barony"

var (
	prefixes = []string{
		"Trerthustan", "Jeerbia", "Trauntium", "Mutuastan", "Myrr",
		"Citan", "Tyrenia", "Nostara", "Yumker", "Branth",
	}
	suffixes = []string{
		"Kingdom", "Union", "Empire", "Federation", "Dominion",
		"Confederacy", "Alliance", "Realm",
	}
)

// generateName draws one "The <Prefix> <Suffix>" name; 1 in 100 is the Barony.
func generateName(rng *rand.Rand) string {
	if rng.Float64() < 0.01 {
		return birmingham
	}
	return fmt.Sprintf("The %s %s", prefixes[rng.Intn(len(prefixes))], suffixes[rng.Intn(len(suffixes))])
}

// GenerateNames returns count unique civilization names. Once the
// prefix/suffix table is exhausted, names repeat with an ordinal suffix.
func GenerateNames(rng *rand.Rand, count int) []string {
	used := make(map[string]bool)
	names := make([]string, 0, count)
	combos := len(prefixes)*len(suffixes) + 1

	for len(names) < count {
		name := generateName(rng)
		if len(used) >= combos {
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s %d", generateName(rng), n)
			}
		}
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}

	return names
}
