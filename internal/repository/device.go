package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	deviceIDPrefix = "TSD_"

	// emulatorInstallID is reported by many emulators and must not be trusted as unique
	emulatorInstallID = "9774d56d682e549c"

	// DefaultNumberPrefix is used for fallback numbers before the device has a prefix
	DefaultNumberPrefix = "ВО"

	// DefaultNumberType is the document type sent to the numbering endpoint
	DefaultNumberType = "input_balance"
)

// DeviceRepository manages this terminal's identity on the backend
type DeviceRepository struct {
	settings *settings.Store
	clients  ClientSource
	device   config.DeviceConfig
	log      *zap.Logger
}

func NewDeviceRepository(store *settings.Store, clients ClientSource, device config.DeviceConfig, log *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		settings: store,
		clients:  clients,
		device:   device,
		log:      orNop(log),
	}
}

// DeviceID returns the persisted device id, generating and saving one on first use
func (r *DeviceRepository) DeviceID() (string, error) {
	if id := r.settings.DeviceID(); id != "" {
		return id, nil
	}

	id := generateDeviceID(r.device.InstallID)
	info := r.settings.DeviceInfo()
	info.DeviceID = id
	info.Name = r.device.Name
	info.Model = r.device.Model
	if err := r.settings.SaveDeviceInfo(info); err != nil {
		return "", err
	}

	r.log.Info("Device id generated", zap.String("device_id", id))
	return id, nil
}

func generateDeviceID(installID string) string {
	installID = strings.TrimSpace(installID)
	if installID != "" && installID != emulatorInstallID && strings.Trim(installID, "0") != "" {
		return deviceIDPrefix + installID
	}
	return deviceIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// RegisterDevice registers the terminal and stores the prefix the server assigned
func (r *DeviceRepository) RegisterDevice(ctx context.Context, token string) (*api.DeviceRegisterResponse, error) {
	req, err := r.registerRequest()
	if err != nil {
		return nil, err
	}

	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	resp, err := client.RegisterDevice(ctx, token, req)
	if err != nil {
		r.log.Warn("Device registration failed", zap.Error(err))
		return nil, fmt.Errorf("register device: %w", err)
	}

	if err := r.settings.SaveDeviceInfo(settings.DeviceInfo{
		DeviceID: resp.DeviceID,
		Prefix:   resp.Prefix,
		Name:     r.device.Name,
		Model:    r.device.Model,
	}); err != nil {
		return nil, err
	}

	r.log.Info("Device registered", zap.String("device_id", resp.DeviceID), zap.String("prefix", resp.Prefix))
	return resp, nil
}

// MyDevice returns the backend record of this terminal
func (r *DeviceRepository) MyDevice(ctx context.Context, token string) (*model.TsdDevice, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}
	return client.MyDevice(ctx, token)
}

// UpdateDevice pushes the current device metadata to the backend
func (r *DeviceRepository) UpdateDevice(ctx context.Context, token string) (*model.TsdDevice, error) {
	req, err := r.registerRequest()
	if err != nil {
		return nil, err
	}

	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}
	return client.UpdateMyDevice(ctx, token, req)
}

func (r *DeviceRepository) IsDeviceRegistered() bool {
	return r.settings.IsDeviceRegistered()
}

func (r *DeviceRepository) DevicePrefix() string {
	return r.settings.DevicePrefix()
}

func (r *DeviceRepository) DeviceInfo() settings.DeviceInfo {
	return r.settings.DeviceInfo()
}

// InitializeDevice registers the terminal unless it already has a prefix and
// returns the prefix.
func (r *DeviceRepository) InitializeDevice(ctx context.Context, token string) (string, error) {
	if r.IsDeviceRegistered() {
		return r.DevicePrefix(), nil
	}

	resp, err := r.RegisterDevice(ctx, token)
	if err != nil {
		return "", err
	}
	return resp.Prefix, nil
}

// NextDocumentNumber asks the backend for the next number of this device
func (r *DeviceRepository) NextDocumentNumber(ctx context.Context, token, documentType string) (string, error) {
	deviceID, err := r.DeviceID()
	if err != nil {
		return "", err
	}

	client, err := r.clients.Client()
	if err != nil {
		return "", err
	}

	if documentType == "" {
		documentType = DefaultNumberType
	}
	resp, err := client.NextDocumentNumber(ctx, token, api.DocumentNumberRequest{
		DeviceID:     deviceID,
		DocumentType: documentType,
	})
	if err != nil {
		return "", err
	}
	return resp.DocumentNumber, nil
}

// FallbackDocumentNumber builds {prefix}-{yyyyMMdd}-{HHmmss} from the local
// clock. Two documents created within the same second get the same number.
func (r *DeviceRepository) FallbackDocumentNumber(now time.Time) string {
	prefix := r.DevicePrefix()
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return prefix + "-" + now.Format("20060102") + "-" + now.Format("150405")
}

func (r *DeviceRepository) registerRequest() (api.DeviceRegisterRequest, error) {
	deviceID, err := r.DeviceID()
	if err != nil {
		return api.DeviceRegisterRequest{}, err
	}
	return api.DeviceRegisterRequest{
		DeviceID:       deviceID,
		DeviceName:     r.device.Name,
		DeviceModel:    r.device.Model,
		AndroidVersion: r.device.PlatformVersion,
		AppVersion:     r.device.AppVersion,
	}, nil
}
