package viewmodel

import (
	"context"

	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"go.uber.org/zap"
)

type DeviceRegistrar interface {
	InitializeDevice(ctx context.Context, token string) (string, error)
	IsDeviceRegistered() bool
	DeviceInfo() settings.DeviceInfo
}

type DeviceState struct {
	Registered bool                `json:"registered"`
	Info       settings.DeviceInfo `json:"info"`
	Error      string              `json:"error,omitempty"`
}

type DeviceViewModel struct {
	device DeviceRegistrar
	tokens TokenSource
	log    *zap.Logger
	state  *Observable[DeviceState]
}

func NewDeviceViewModel(device DeviceRegistrar, tokens TokenSource, log *zap.Logger) *DeviceViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	vm := &DeviceViewModel{device: device, tokens: tokens, log: log}
	vm.state = NewObservable(vm.current(""))
	return vm
}

func (vm *DeviceViewModel) State() DeviceState {
	return vm.state.Get()
}

// Initialize registers the terminal with the backend unless it already has a prefix
func (vm *DeviceViewModel) Initialize(ctx context.Context) (DeviceState, error) {
	token, err := vm.tokens.AccessToken()
	if err == nil {
		_, err = vm.device.InitializeDevice(ctx, token)
	}

	state := vm.current(Message(err))
	vm.state.Set(state)
	return state, err
}

// Info returns the locally stored device identity
func (vm *DeviceViewModel) Info() settings.DeviceInfo {
	return vm.device.DeviceInfo()
}

func (vm *DeviceViewModel) current(errMsg string) DeviceState {
	return DeviceState{
		Registered: vm.device.IsDeviceRegistered(),
		Info:       vm.device.DeviceInfo(),
		Error:      errMsg,
	}
}
