package bootstrap

import "testing"

func TestInstallOptionsFlagCurrentPlatform(t *testing.T) {
	options := installOptionsFor("darwin", "arm64")
	if len(options) != len(dockerInstallCatalog) {
		t.Fatalf("options = %d, want %d", len(options), len(dockerInstallCatalog))
	}

	current := 0
	for _, option := range options {
		if !option.Current {
			continue
		}
		current++
		if option.URL != "https://desktop.docker.com/mac/main/arm64/Docker.dmg" {
			t.Fatalf("current url = %s", option.URL)
		}
	}
	if current != 1 {
		t.Fatalf("current options = %d, want 1", current)
	}
}

func TestInstallOptionsIgnoreArchWhenUnset(t *testing.T) {
	for _, option := range installOptionsFor("windows", "arm64") {
		if option.OS == "windows" && !option.Current {
			t.Fatalf("windows option not flagged: %+v", option)
		}
		if option.OS != "windows" && option.Current {
			t.Fatalf("unexpected current option: %+v", option)
		}
	}
}
