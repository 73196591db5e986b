//go:build windows

package locate

import (
	"golang.org/x/sys/windows/registry"
)

// systemRegistry reads the Windows uninstall keys directly. Both the native
// and WOW6432Node views are checked, in both the per-machine and per-user
// hives; none of them requires administrator privileges to read.
type systemRegistry struct{}

// NewSystemRegistry returns the production registry view.
func NewSystemRegistry() RegistryView {
	return systemRegistry{}
}

var uninstallPaths = []string{
	`SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`,
	`SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
}

var uninstallHives = []registry.Key{
	registry.LOCAL_MACHINE,
	registry.CURRENT_USER,
}

func (systemRegistry) UninstallEntries() ([]UninstallEntry, error) {
	var entries []UninstallEntry

	for _, hive := range uninstallHives {
		for _, path := range uninstallPaths {
			entries = append(entries, readUninstallKey(hive, path)...)
		}
	}

	return entries, nil
}

func readUninstallKey(hive registry.Key, path string) []UninstallEntry {
	k, err := registry.OpenKey(hive, path, registry.ENUMERATE_SUB_KEYS|registry.READ)
	if err != nil {
		return nil
	}
	defer k.Close()

	subkeys, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil
	}

	var entries []UninstallEntry
	for _, name := range subkeys {
		sk, err := registry.OpenKey(hive, path+`\`+name, registry.READ)
		if err != nil {
			continue
		}

		displayName, _, err := sk.GetStringValue("DisplayName")
		if err == nil && displayName != "" {
			location, _, _ := sk.GetStringValue("InstallLocation")
			icon, _, _ := sk.GetStringValue("DisplayIcon")
			entries = append(entries, UninstallEntry{
				DisplayName:     displayName,
				InstallLocation: location,
				DisplayIcon:     icon,
			})
		}
		sk.Close()
	}
	return entries
}
