// Package catalog provides the fixed set of valid city names and the
// orthographic rule that derives each name's continuation letter.
//
// The word-chain rule: every submitted city must begin with the
// continuation letter of the previous one. A handful of letters (ь, ъ, ы)
// can end a Russian city name but never start one, so the continuation
// letter is the nearest preceding letter outside that set.
//
// The default dataset is embedded at build time; Load reads a custom JSON
// list for servers that want their own geography.
package catalog
