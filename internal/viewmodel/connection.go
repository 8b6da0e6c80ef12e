package viewmodel

import (
	"strings"

	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"go.uber.org/zap"
)

type ConnectionStore interface {
	ConnectionSettings() settings.ConnectionSettings
	SaveConnectionSettings(cs settings.ConnectionSettings) error
}

// ClientResetter drops a client built from old connection settings
type ClientResetter interface {
	Reset()
}

var connectionMessages = map[string]string{
	"server_url": "Enter the server address",
	"port":       "Port must be a number",
}

type ConnectionSettingsViewModel struct {
	store   ConnectionStore
	clients ClientResetter
	log     *zap.Logger
}

func NewConnectionSettingsViewModel(store ConnectionStore, clients ClientResetter, log *zap.Logger) *ConnectionSettingsViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConnectionSettingsViewModel{store: store, clients: clients, log: log}
}

func (vm *ConnectionSettingsViewModel) Load() settings.ConnectionSettings {
	return vm.store.ConnectionSettings()
}

// Save validates and stores new settings. Later backend calls use them.
func (vm *ConnectionSettingsViewModel) Save(cs settings.ConnectionSettings) (settings.ConnectionSettings, error) {
	cs.ServerURL = strings.TrimSpace(cs.ServerURL)
	cs.Port = strings.TrimSpace(cs.Port)
	cs.APIKey = strings.TrimSpace(cs.APIKey)

	if err := validateStruct(cs, connectionMessages); err != nil {
		return cs, err
	}
	if err := vm.store.SaveConnectionSettings(cs); err != nil {
		return cs, err
	}
	vm.clients.Reset()

	vm.log.Info("Connection settings saved", zap.String("base_url", cs.FullURL()))
	return cs, nil
}

func (vm *ConnectionSettingsViewModel) FullURL() string {
	return vm.store.ConnectionSettings().FullURL()
}
