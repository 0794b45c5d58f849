package config

import (
	"fmt"
	"time"
)

const (
	SectionGeneral    = "general"
	SectionExtensions = "extensions"
	SectionAurora     = "aurora"
	SectionWebserver  = "webserver"
)

const (
	KeyEnabled        = "enabled"
	KeyConfigured     = "configured"
	KeyScreenshotPath = "screenshot_path"
	KeyPixelImagePath = "pixel_image_path"
	KeyLoopInterval   = "loop_interval"
	KeyHookWarnAfter  = "hook_warn_after"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyWatch          = "watch"

	KeyDirectory        = "directory"
	KeyCurrentExtension = "current_extension"

	KeyPixelsLeft   = "pixelcount_left"
	KeyPixelsRight  = "pixelcount_right"
	KeyPixelsTop    = "pixelcount_top"
	KeyPixelsBottom = "pixelcount_bottom"
	KeyPixelsTotal  = "pixelcount_total"
	KeyMaxPixels    = "max_pixels"
	KeyOutput       = "output"
	KeyDevicePath   = "device_path"

	KeyListenHost    = "listen_host"
	KeyServerPort    = "server_port"
	KeyAuthEnabled   = "auth_enabled"
	KeyTokenIssuer   = "token_issuer"
	KeySecretBackend = "secret_backend"
	KeySecretDir     = "secret_dir"
	KeyVaultMount    = "vault_mount"
	KeyVaultPath     = "vault_path"
)

// ApplyDefaults registers the default value of every known key.
func ApplyDefaults(s *Store) {
	s.SetDefault(SectionGeneral, KeyEnabled, true)
	s.SetDefault(SectionGeneral, KeyConfigured, false)
	s.SetDefault(SectionGeneral, KeyScreenshotPath, "static/screenshot.png")
	s.SetDefault(SectionGeneral, KeyPixelImagePath, "static/pixels.png")
	s.SetDefault(SectionGeneral, KeyLoopInterval, "1ms")
	s.SetDefault(SectionGeneral, KeyHookWarnAfter, "0s")
	s.SetDefault(SectionGeneral, KeyLogLevel, "info")
	s.SetDefault(SectionGeneral, KeyLogFormat, "text")
	s.SetDefault(SectionGeneral, KeyWatch, true)

	s.SetDefault(SectionExtensions, KeyDirectory, "extensions")
	s.SetDefault(SectionExtensions, KeyCurrentExtension, "rainbow")

	for _, key := range []string{KeyPixelsLeft, KeyPixelsRight, KeyPixelsTop, KeyPixelsBottom, KeyPixelsTotal} {
		s.SetDefault(SectionAurora, key, 0)
	}
	s.SetDefault(SectionAurora, KeyMaxPixels, 999)
	s.SetDefault(SectionAurora, KeyOutput, "memory")
	s.SetDefault(SectionAurora, KeyDevicePath, "")

	s.SetDefault(SectionWebserver, KeyEnabled, true)
	s.SetDefault(SectionWebserver, KeyListenHost, "0.0.0.0")
	s.SetDefault(SectionWebserver, KeyServerPort, 8080)
	s.SetDefault(SectionWebserver, KeyAuthEnabled, false)
	s.SetDefault(SectionWebserver, KeyTokenIssuer, "aurora")
	s.SetDefault(SectionWebserver, KeySecretBackend, "file")
	s.SetDefault(SectionWebserver, KeySecretDir, ".secrets")
	s.SetDefault(SectionWebserver, KeyVaultMount, "secret")
	s.SetDefault(SectionWebserver, KeyVaultPath, "aurora")
}

// AddValidators registers the validators run on every load.
func AddValidators(s *Store) {
	for _, key := range []string{KeyEnabled, KeyConfigured, KeyWatch} {
		s.AddValidator(SectionGeneral, key, &BoolValidator{})
	}
	s.AddValidator(SectionGeneral, KeyLoopInterval, &DurationValidator{Min: 0})
	s.AddValidator(SectionGeneral, KeyHookWarnAfter, &DurationValidator{Min: 0})
	s.AddValidator(SectionGeneral, KeyLogFormat, &EnumValidator{Allowed: []interface{}{"text", "json"}})

	s.AddValidator(SectionExtensions, KeyDirectory, &RequiredValidator{})

	for _, key := range []string{KeyPixelsLeft, KeyPixelsRight, KeyPixelsTop, KeyPixelsBottom, KeyPixelsTotal} {
		s.AddValidator(SectionAurora, key, &RangeValidator{Min: 0})
	}
	s.AddValidator(SectionAurora, KeyMaxPixels, &RangeValidator{Min: 1})
	s.AddValidator(SectionAurora, KeyOutput, &EnumValidator{Allowed: []interface{}{"memory", "device"}})

	s.AddValidator(SectionWebserver, KeyServerPort, PortValidator())
	s.AddValidator(SectionWebserver, KeySecretBackend, &EnumValidator{Allowed: []interface{}{"file", "vault"}})
}

// Load builds a store with defaults and validators and reads path.
func Load(path string, logger Logger) (*Store, error) {
	s := NewStore(path, logger)
	ApplyDefaults(s)
	AddValidators(s)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Settings is a typed snapshot of the store used at startup.
type Settings struct {
	Enabled        bool
	Configured     bool
	ScreenshotPath string
	PixelImagePath string
	LoopInterval   time.Duration
	HookWarnAfter  time.Duration
	LogLevel       string
	LogFormat      string
	Watch          bool

	ExtensionDir     string
	CurrentExtension string

	Left, Right, Top, Bottom int
	MaxPixels                int
	Output                   string
	DevicePath               string

	WebEnabled    bool
	ListenHost    string
	ServerPort    int
	AuthEnabled   bool
	TokenIssuer   string
	SecretBackend string
	SecretDir     string
	VaultMount    string
	VaultPath     string
}

// Addr is the listen address of the control API.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.ListenHost, s.ServerPort)
}

// Settings reads every known key. The first conversion failure is returned.
func (s *Store) Settings() (Settings, error) {
	var (
		out Settings
		err error
	)
	str := func(section, key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = s.GetString(section, key)
		return v
	}
	boolean := func(section, key string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = s.GetBool(section, key)
		return v
	}
	integer := func(section, key string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = s.GetInt(section, key)
		return v
	}
	duration := func(section, key string) time.Duration {
		if err != nil {
			return 0
		}
		var v time.Duration
		v, err = s.GetDuration(section, key)
		return v
	}

	out.Enabled = boolean(SectionGeneral, KeyEnabled)
	out.Configured = boolean(SectionGeneral, KeyConfigured)
	out.ScreenshotPath = str(SectionGeneral, KeyScreenshotPath)
	out.PixelImagePath = str(SectionGeneral, KeyPixelImagePath)
	out.LoopInterval = duration(SectionGeneral, KeyLoopInterval)
	out.HookWarnAfter = duration(SectionGeneral, KeyHookWarnAfter)
	out.LogLevel = str(SectionGeneral, KeyLogLevel)
	out.LogFormat = str(SectionGeneral, KeyLogFormat)
	out.Watch = boolean(SectionGeneral, KeyWatch)

	out.ExtensionDir = str(SectionExtensions, KeyDirectory)
	out.CurrentExtension = str(SectionExtensions, KeyCurrentExtension)

	out.Left = integer(SectionAurora, KeyPixelsLeft)
	out.Right = integer(SectionAurora, KeyPixelsRight)
	out.Top = integer(SectionAurora, KeyPixelsTop)
	out.Bottom = integer(SectionAurora, KeyPixelsBottom)
	out.MaxPixels = integer(SectionAurora, KeyMaxPixels)
	out.Output = str(SectionAurora, KeyOutput)
	out.DevicePath = str(SectionAurora, KeyDevicePath)

	out.WebEnabled = boolean(SectionWebserver, KeyEnabled)
	out.ListenHost = str(SectionWebserver, KeyListenHost)
	out.ServerPort = integer(SectionWebserver, KeyServerPort)
	out.AuthEnabled = boolean(SectionWebserver, KeyAuthEnabled)
	out.TokenIssuer = str(SectionWebserver, KeyTokenIssuer)
	out.SecretBackend = str(SectionWebserver, KeySecretBackend)
	out.SecretDir = str(SectionWebserver, KeySecretDir)
	out.VaultMount = str(SectionWebserver, KeyVaultMount)
	out.VaultPath = str(SectionWebserver, KeyVaultPath)

	return out, err
}
