//go:build !windows

package locate

// systemRegistry is a no-op on platforms without a Windows registry.
type systemRegistry struct{}

// NewSystemRegistry returns the production registry view.
func NewSystemRegistry() RegistryView {
	return systemRegistry{}
}

func (systemRegistry) UninstallEntries() ([]UninstallEntry, error) {
	return nil, nil
}
