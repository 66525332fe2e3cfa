// Command analyze prints quick, human-readable heuristics about a city
// catalog: how many cities start with each letter, how demand for
// continuation letters compares to supply, and which cities are dead ends
// because no catalog city can follow them.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
)

// Letters skipped when deriving the continuation letter.
var excludedLetters = map[rune]bool{'ь': true, 'ъ': true, 'ы': true}

// letterStats aggregates per-letter supply and demand over one catalog.
type letterStats struct {
	// starters is how many cities begin with the letter (supply).
	starters int
	// continuations is how many cities hand the turn to the letter (demand).
	continuations int
}

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		files = []string{"game/catalog/cities.json"}
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", file)
		analyzeCatalog(file)
	}
}

func analyzeCatalog(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		return
	}

	stats := map[rune]*letterStats{}
	statsFor := func(r rune) *letterStats {
		s, ok := stats[r]
		if !ok {
			s = &letterStats{}
			stats[r] = s
		}
		return s
	}

	var deadEnds []string
	for _, name := range names {
		statsFor(firstLetter(name)).starters++
	}
	for _, name := range names {
		cont := continuationLetter(name)
		if cont == 0 {
			continue
		}
		statsFor(cont).continuations++
		if s, ok := stats[cont]; !ok || s.starters == 0 {
			deadEnds = append(deadEnds, name)
		}
	}

	fmt.Printf("Cities: %d\n", len(names))
	fmt.Printf("Distinct starting letters: %d\n", countStarters(stats))

	letters := make([]rune, 0, len(stats))
	for r := range stats {
		letters = append(letters, r)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	fmt.Println("\nLetter   supply   demand")
	for _, r := range letters {
		s := stats[r]
		if s.starters == 0 && s.continuations == 0 {
			continue
		}
		marker := ""
		if s.continuations > s.starters {
			marker = "  ⚠️  demand exceeds supply"
		}
		fmt.Printf("   %c  %7d  %7d%s\n", r, s.starters, s.continuations, marker)
	}

	if len(deadEnds) > 0 {
		fmt.Printf("\n⚠️  WARNING: %d cities are dead ends (no city can follow them):\n", len(deadEnds))
		for i, name := range deadEnds {
			if i >= 5 {
				fmt.Printf("   ... and %d more\n", len(deadEnds)-5)
				break
			}
			fmt.Printf("   %s (needs a city starting with '%c')\n", name, continuationLetter(name))
		}
	} else {
		fmt.Println("\n✓ No dead ends: every city can be followed by another")
	}
}

func countStarters(stats map[rune]*letterStats) int {
	n := 0
	for _, s := range stats {
		if s.starters > 0 {
			n++
		}
	}
	return n
}

func firstLetter(name string) rune {
	for _, r := range strings.ToLower(name) {
		return r
	}
	return 0
}

// continuationLetter is the last letter of name that a next city may start
// with, skipping letters that cannot begin a Russian word.
func continuationLetter(name string) rune {
	runes := []rune(strings.ToLower(strings.TrimSpace(name)))
	for i := len(runes) - 1; i >= 0; i-- {
		if !excludedLetters[runes[i]] && unicode.IsLetter(runes[i]) {
			return runes[i]
		}
	}
	if len(runes) > 0 {
		return runes[len(runes)-1]
	}
	return 0
}
