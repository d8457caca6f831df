// Package stow manages a convention-driven local data cache.
//
// A Stow resolves the Base Location once (explicit root, STOW_HOME, STOW_NAME,
// STOW_USE_APPDIRS, or ~/.data) and hands out Module handles rooted at
// <base>/<module>. A Module joins sub-keys into directories and ensures remote
// resources are present: each file is transferred at most once unless Force is
// set, written to a temporary file in the target directory, and renamed into
// place so the canonical path never holds a partial download.
//
//	s, err := stow.New(stow.Options{})
//	mod, err := s.Module("pokemon")
//	frame, err := mod.EnsureCSV(ctx, stow.Request{
//		Subkeys: []string{"datasets"},
//		URL:     "https://example.org/nations.tsv",
//	}, nil)
//
// Decoded values are produced fresh on every call; only the raw file is cached.
package stow
