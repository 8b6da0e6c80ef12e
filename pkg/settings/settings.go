package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotConfigured is returned when no backend server URL has been configured
var ErrNotConfigured = errors.New("server connection is not configured")

const (
	keyServerURL        = "server_url"
	keyPort             = "port"
	keyAPIKey           = "api_key"
	keyClientID         = "client_id"
	keyClientSecret     = "client_secret"
	keyAccessToken      = "access_token"
	keyRefreshToken     = "refresh_token"
	keyTokenExpires     = "token_expires_at"
	keyUserID           = "user_id"
	keyUsername         = "username"
	keyUserEmail        = "user_email"
	keyIsLoggedIn       = "is_logged_in"
	keyDeviceID         = "device_id"
	keyDevicePrefix     = "device_prefix"
	keyDeviceName       = "device_name"
	keyDeviceModel      = "device_model"
	keyDeviceRegistered = "device_registered"
)

var sessionKeys = []string{
	keyAccessToken, keyRefreshToken, keyTokenExpires,
	keyUserID, keyUsername, keyUserEmail,
}

// ConnectionSettings is the backend address configured by the operator
type ConnectionSettings struct {
	ServerURL string `json:"server_url" validate:"required"`
	Port      string `json:"port" validate:"omitempty,numeric"`
	APIKey    string `json:"api_key"`
}

// FullURL returns the base URL used by the API client, always ending in a
// single "/". It returns "" when no server URL is set.
func (c ConnectionSettings) FullURL() string {
	server := strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if server == "" {
		return ""
	}

	base := server
	if port := strings.TrimSpace(c.Port); port != "" {
		base = server + ":" + port
	}

	lower := strings.ToLower(base)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		base = "http://" + base
	}

	return base + "/"
}

// UserData is the identity of the logged-in operator
type UserData struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// DeviceInfo is the locally persisted device identity
type DeviceInfo struct {
	DeviceID string `json:"device_id"`
	Prefix   string `json:"prefix"`
	Name     string `json:"device_name"`
	Model    string `json:"device_model"`
}

// Store persists connection settings, the OAuth client, the session and the
// device identity in the settings table of the cache database. Reads never
// fail: a storage error is logged and reported as an unset value.
type Store struct {
	db       *gorm.DB
	defaults ConnectionSettings
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the clock used for token expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used to report storage errors
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a Store. defaults are returned for connection fields that
// have never been saved.
func NewStore(db *gorm.DB, defaults ConnectionSettings, opts ...Option) *Store {
	s := &Store{
		db:       db,
		defaults: defaults,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveConnectionSettings persists the backend address
func (s *Store) SaveConnectionSettings(cs ConnectionSettings) error {
	return s.write(map[string]string{
		keyServerURL: cs.ServerURL,
		keyPort:      cs.Port,
		keyAPIKey:    cs.APIKey,
	})
}

// ConnectionSettings returns the saved backend address or the defaults
func (s *Store) ConnectionSettings() ConnectionSettings {
	cs := s.defaults
	if v, ok := s.lookup(keyServerURL); ok {
		cs.ServerURL = v
	}
	if v, ok := s.lookup(keyPort); ok {
		cs.Port = v
	}
	if v, ok := s.lookup(keyAPIKey); ok {
		cs.APIKey = v
	}
	return cs
}

// SaveOAuthClient persists the self-registered OAuth client credentials
func (s *Store) SaveOAuthClient(clientID, clientSecret string) error {
	return s.write(map[string]string{
		keyClientID:     clientID,
		keyClientSecret: clientSecret,
	})
}

func (s *Store) OAuthClientID() string {
	return s.get(keyClientID)
}

func (s *Store) OAuthClientSecret() string {
	return s.get(keyClientSecret)
}

// HasOAuthClient reports whether both client credentials are stored
func (s *Store) HasOAuthClient() bool {
	return s.OAuthClientID() != "" && s.OAuthClientSecret() != ""
}

// SaveAuthData persists the token pair. The expiry is stored in epoch
// milliseconds as now + expiresIn seconds.
func (s *Store) SaveAuthData(accessToken, refreshToken string, expiresIn int) error {
	expiresAt := s.now().UnixMilli() + int64(expiresIn)*1000
	return s.write(map[string]string{
		keyAccessToken:  accessToken,
		keyRefreshToken: refreshToken,
		keyTokenExpires: strconv.FormatInt(expiresAt, 10),
	})
}

func (s *Store) AccessToken() string {
	return s.get(keyAccessToken)
}

func (s *Store) RefreshToken() string {
	return s.get(keyRefreshToken)
}

// TokenExpiresAt returns the stored expiry, or the zero time when unset
func (s *Store) TokenExpiresAt() time.Time {
	ms, err := strconv.ParseInt(s.get(keyTokenExpires), 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// IsTokenValid reports whether the stored expiry is in the future
func (s *Store) IsTokenValid() bool {
	ms, err := strconv.ParseInt(s.get(keyTokenExpires), 10, 64)
	if err != nil {
		return false
	}
	return ms > s.now().UnixMilli()
}

// SaveUserData persists the operator identity and marks the session logged in
func (s *Store) SaveUserData(user UserData) error {
	return s.write(map[string]string{
		keyUserID:     strconv.FormatInt(user.ID, 10),
		keyUsername:   user.Username,
		keyUserEmail:  user.Email,
		keyIsLoggedIn: "true",
	})
}

func (s *Store) UserData() UserData {
	id, _ := strconv.ParseInt(s.get(keyUserID), 10, 64)
	return UserData{
		ID:       id,
		Username: s.get(keyUsername),
		Email:    s.get(keyUserEmail),
	}
}

// IsLoggedIn is true only when the logged-in flag is set and the token has not expired
func (s *Store) IsLoggedIn() bool {
	return s.get(keyIsLoggedIn) == "true" && s.IsTokenValid()
}

// Logout clears the token and user fields. The OAuth client is kept so the
// next login skips registration.
func (s *Store) Logout() error {
	return s.transaction(func(tx *gorm.DB) error {
		if err := remove(tx, sessionKeys...); err != nil {
			return err
		}
		return upsert(tx, s.now(), map[string]string{keyIsLoggedIn: "false"})
	})
}

// ClearAuthData clears the session together with the OAuth client
func (s *Store) ClearAuthData() error {
	return s.transaction(func(tx *gorm.DB) error {
		keys := append([]string{keyClientID, keyClientSecret}, sessionKeys...)
		if err := remove(tx, keys...); err != nil {
			return err
		}
		return upsert(tx, s.now(), map[string]string{keyIsLoggedIn: "false"})
	})
}

// ClearAll wipes every stored setting
func (s *Store) ClearAll() error {
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Setting{}).Error; err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	return nil
}

// SaveDeviceInfo persists the device identity
func (s *Store) SaveDeviceInfo(info DeviceInfo) error {
	registered := "false"
	if info.DeviceID != "" && info.Prefix != "" {
		registered = "true"
	}
	return s.write(map[string]string{
		keyDeviceID:         info.DeviceID,
		keyDevicePrefix:     info.Prefix,
		keyDeviceName:       info.Name,
		keyDeviceModel:      info.Model,
		keyDeviceRegistered: registered,
	})
}

func (s *Store) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		DeviceID: s.get(keyDeviceID),
		Prefix:   s.get(keyDevicePrefix),
		Name:     s.get(keyDeviceName),
		Model:    s.get(keyDeviceModel),
	}
}

func (s *Store) DeviceID() string {
	return s.get(keyDeviceID)
}

func (s *Store) DevicePrefix() string {
	return s.get(keyDevicePrefix)
}

// IsDeviceRegistered reports whether the server has assigned this device a prefix
func (s *Store) IsDeviceRegistered() bool {
	return s.get(keyDeviceRegistered) == "true" && s.DevicePrefix() != ""
}

func (s *Store) get(key string) string {
	v, _ := s.lookup(key)
	return v
}

func (s *Store) lookup(key string) (string, bool) {
	var setting model.Setting
	err := s.db.Where("name = ?", key).Limit(1).Find(&setting).Error
	if err != nil {
		s.log.Error("Failed to read setting", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if setting.Name == "" {
		return "", false
	}
	return setting.Value, true
}

func (s *Store) write(values map[string]string) error {
	return s.transaction(func(tx *gorm.DB) error {
		return upsert(tx, s.now(), values)
	})
}

func (s *Store) transaction(fn func(tx *gorm.DB) error) error {
	if err := s.db.Transaction(fn); err != nil {
		s.log.Error("Failed to write settings", zap.Error(err))
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func upsert(tx *gorm.DB, now time.Time, values map[string]string) error {
	rows := make([]model.Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, model.Setting{Name: k, Value: v, UpdatedAt: now})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

func remove(tx *gorm.DB, keys ...string) error {
	return tx.Where("name IN ?", keys).Delete(&model.Setting{}).Error
}
