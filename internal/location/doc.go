// Package location resolves the Base Location: the single directory under which
// every module namespace lives. The policy consults, in order, an explicit root,
// STOW_HOME, STOW_NAME, STOW_USE_APPDIRS and finally falls back to ~/.data.
// Resolution happens once per stow.Stow and the result never changes afterwards.
package location
