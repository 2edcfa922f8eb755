package gcp

import (
	"errors"
	"testing"
)

func TestResolveStorageConfigDefaultGCS(t *testing.T) {
	cfg, err := ResolveStorageConfig("", "")
	if err != nil {
		t.Fatalf("ResolveStorageConfig: %v", err)
	}
	if cfg.Mode != StorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", StorageModeGCS, cfg.Mode)
	}
	if cfg.Inferred {
		t.Fatalf("inferred: want=false got=true")
	}
}

func TestResolveStorageConfigExplicitGCSIgnoresHost(t *testing.T) {
	cfg, err := ResolveStorageConfig("GCS", "http://fake-gcs:4443")
	if err != nil {
		t.Fatalf("ResolveStorageConfig: %v", err)
	}
	if cfg.Mode != StorageModeGCS || cfg.IsEmulator() {
		t.Fatalf("mode: want=%q got=%q", StorageModeGCS, cfg.Mode)
	}
}

func TestResolveStorageConfigInfersEmulator(t *testing.T) {
	cfg, err := ResolveStorageConfig("", "http://fake-gcs:4443/")
	if err != nil {
		t.Fatalf("ResolveStorageConfig: %v", err)
	}
	if !cfg.IsEmulator() || !cfg.Inferred {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("host=%q", cfg.EmulatorHost)
	}
	if got := cfg.ModeSource(); got != "inferred_from_emulator_host" {
		t.Fatalf("ModeSource=%q", got)
	}
}

func TestResolveStorageConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		mode string
		host string
		code StorageConfigErrorCode
	}{
		{"invalid mode", "s3", "", StorageConfigErrorInvalidMode},
		{"emulator without host", "gcs_emulator", "", StorageConfigErrorMissingEmulatorHost},
		{"emulator with bad host", "gcs_emulator", "fake-gcs:4443", StorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveStorageConfig(tc.mode, tc.host)
			var cfgErr *StorageConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err=%v", err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, cfgErr.Code)
			}
		})
	}
}

func TestResolvePublicBaseURL(t *testing.T) {
	emu := StorageConfig{Mode: StorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"}

	if base, source, err := resolvePublicBaseURL("", StorageConfig{Mode: StorageModeGCS}); err != nil || base != "" || source != "gcs_default" {
		t.Fatalf("gcs default: base=%q source=%q err=%v", base, source, err)
	}
	if base, source, err := resolvePublicBaseURL("", emu); err != nil || base != "http://fake-gcs:4443" || source != "storage_emulator_host" {
		t.Fatalf("emulator: base=%q source=%q err=%v", base, source, err)
	}
	if base, _, err := resolvePublicBaseURL("http://localhost:4443/", emu); err != nil || base != "http://localhost:4443" {
		t.Fatalf("override: base=%q err=%v", base, err)
	}
	if _, _, err := resolvePublicBaseURL("localhost:4443", emu); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestPublicURL(t *testing.T) {
	key := "galaxy-chat/u1/a b.png"
	cases := []struct {
		name string
		b    *mediaBucket
		want string
	}{
		{
			name: "gcs default",
			b:    &mediaBucket{bucket: "media", storage: StorageConfig{Mode: StorageModeGCS}},
			want: "https://storage.googleapis.com/media/galaxy-chat/u1/a b.png",
		},
		{
			name: "cdn",
			b:    &mediaBucket{bucket: "media", cdnDomain: "cdn.example.com", storage: StorageConfig{Mode: StorageModeGCS}},
			want: "https://cdn.example.com/galaxy-chat/u1/a b.png",
		},
		{
			name: "emulator",
			b:    &mediaBucket{bucket: "media", publicBaseURL: "http://localhost:4443", storage: StorageConfig{Mode: StorageModeGCSEmulator}},
			want: "http://localhost:4443/storage/v1/b/media/o/galaxy-chat%2Fu1%2Fa%20b.png?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.b.PublicURL("/" + key); got != tc.want {
				t.Fatalf("PublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}
