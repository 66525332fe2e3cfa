// Command validate checks city catalog JSON files. It verifies:
//   - JSON structure (a flat array of strings)
//   - No empty or whitespace-only entries
//   - No case-insensitive duplicates
//   - Entries that can never be chained to because they start with a letter
//     no city name can end a chain on
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Letters that never become the continuation letter; a city starting with
// one of them can only open a game, never continue one.
var excludedLetters = map[rune]bool{'ь': true, 'ъ': true, 'ы': true}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateCatalog loads and validates a single catalog JSON file.
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if len(names) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "Catalog is empty")
		return result
	}

	seen := map[string]int{}
	duplicates := 0
	openingOnly := 0

	for i, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Empty entry at index %d", i))
			continue
		}
		if trimmed != name {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Entry %q has surrounding whitespace", name))
		}

		key := strings.ToLower(trimmed)
		if first, ok := seen[key]; ok {
			result.Valid = false
			duplicates++
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate entry %q (indexes %d and %d)", trimmed, first, i))
		} else {
			seen[key] = i
		}

		if excludedLetters[firstRune(key)] {
			openingOnly++
		}
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Entries: %d", len(names)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Unique names: %d", len(seen)))
		if openingOnly > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Opening-only cities (unreachable mid-chain): %d", openingOnly))
		}
	}

	return result
}

func firstRune(s string) rune {
	for _, r := range s {
		return unicode.ToLower(r)
	}
	return 0
}

// main validates the catalog files given as arguments, defaulting to the
// embedded catalog source, and exits non-zero if any are invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		files = []string{"game/catalog/cities.json"}
	}

	allValid := true
	for _, file := range files {
		result := validateCatalog(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All catalogs are valid!")
	} else {
		fmt.Println("❌ Some catalogs have errors")
		os.Exit(1)
	}
}
