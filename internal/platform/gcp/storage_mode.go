package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

// StorageConfig selects real GCS or a fake-gcs-server style emulator.
type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is set when the mode was derived from EmulatorHost alone.
	Inferred bool
}

func (m StorageMode) Supported() bool {
	return m == StorageModeGCS || m == StorageModeGCSEmulator
}

func (cfg StorageConfig) IsEmulator() bool {
	return cfg.Mode == StorageModeGCSEmulator
}

func (cfg StorageConfig) ModeSource() string {
	if cfg.Inferred {
		return "inferred_from_emulator_host"
	}
	return "explicit_or_default"
}

type StorageConfigErrorCode string

const (
	StorageConfigErrorInvalidMode         StorageConfigErrorCode = "invalid_mode"
	StorageConfigErrorMissingEmulatorHost StorageConfigErrorCode = "missing_emulator_host"
	StorageConfigErrorInvalidEmulatorHost StorageConfigErrorCode = "invalid_emulator_host"
)

type StorageConfigError struct {
	Code         StorageConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageConfigError) Error() string {
	if e == nil {
		return "invalid media storage config"
	}
	switch e.Code {
	case StorageConfigErrorInvalidMode:
		return fmt.Sprintf("invalid MEDIA_STORAGE_MODE=%q (allowed: %q, %q)", e.Mode, StorageModeGCS, StorageModeGCSEmulator)
	case StorageConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("MEDIA_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", StorageModeGCSEmulator)
	case StorageConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid media storage config"
	}
}

func (e *StorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveStorageConfig turns the raw mode and emulator host settings into a
// validated config. An empty mode means GCS, or the emulator when a host is set.
func ResolveStorageConfig(rawMode, emulatorHost string) (StorageConfig, error) {
	cfg := StorageConfig{EmulatorHost: strings.TrimRight(strings.TrimSpace(emulatorHost), "/")}

	switch mode := StorageMode(strings.ToLower(strings.TrimSpace(rawMode))); mode {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.Inferred = true
		} else {
			cfg.Mode = StorageModeGCS
		}
	case StorageModeGCS, StorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &StorageConfigError{Code: StorageConfigErrorInvalidMode, Mode: rawMode}
	}

	return cfg, ValidateStorageConfig(cfg)
}

func ValidateStorageConfig(cfg StorageConfig) error {
	if !cfg.Mode.Supported() {
		return &StorageConfigError{Code: StorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if !cfg.IsEmulator() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &StorageConfigError{Code: StorageConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return &StorageConfigError{
			Code:         StorageConfigErrorInvalidEmulatorHost,
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Cause:        err,
		}
	}
	return nil
}
