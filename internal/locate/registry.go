// Package locate maps an application identity plus an advisory install hint
// to the absolute path of the executable an installer actually produced.
// Installers routinely ignore directory hints, rename their target folder to
// the repository slug, and drop installer/uninstaller noise next to the real
// binary, so discovery is a layered heuristic: registry first, then a flat
// filesystem probe, then a bounded recursive walk.
package locate

// UninstallEntry is one installed-application record from the OS uninstall
// database. InstallLocation and DisplayIcon may be empty.
type UninstallEntry struct {
	DisplayName     string
	InstallLocation string
	DisplayIcon     string
}

// RegistryView enumerates installed-application records across the relevant
// per-machine/per-user/32-bit views. On non-Windows targets the system
// implementation returns an empty set, which keeps the heuristic engine
// independent of the registry's existence.
type RegistryView interface {
	UninstallEntries() ([]UninstallEntry, error)
}
