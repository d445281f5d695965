package ui

import (
	"testing"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

func TestDefaultTheme(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	if theme.Renderer != renderer {
		t.Error("DefaultTheme renderer mismatch")
	}
	for name, c := range map[string]lipgloss.AdaptiveColor{
		"Primary":   theme.Primary,
		"Highlight": theme.Highlight,
		"Danger":    theme.Danger,
		"Muted":     theme.Muted,
	} {
		if isColorEmpty(c) {
			t.Errorf("DefaultTheme %s color is empty", name)
		}
	}
}

func isColorEmpty(c lipgloss.AdaptiveColor) bool {
	return c.Light == "" && c.Dark == ""
}

func TestColorProfile_Detection(t *testing.T) {
	// TermProfile is set at init(); just verify it's a valid value
	valid := map[colorprofile.Profile]bool{
		colorprofile.Unknown:   true,
		colorprofile.NoTTY:     true,
		colorprofile.ASCII:     true,
		colorprofile.ANSI:      true,
		colorprofile.ANSI256:   true,
		colorprofile.TrueColor: true,
	}
	if !valid[TermProfile] {
		t.Errorf("TermProfile has unexpected value: %d", TermProfile)
	}
}

func TestThemeFg(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	tests := []struct {
		profile  colorprofile.Profile
		wantANSI bool
	}{
		{colorprofile.TrueColor, false},
		{colorprofile.ANSI256, false},
		{colorprofile.ANSI, true},
		{colorprofile.NoTTY, true},
	}
	for _, tt := range tests {
		TermProfile = tt.profile
		got := ThemeFg("#FF6B6B")
		ansi, ok := got.(lipgloss.ANSIColor)
		if ok != tt.wantANSI {
			t.Errorf("profile %v: ThemeFg returned %T", tt.profile, got)
		}
		if ok && ansi != 7 {
			t.Errorf("profile %v: ThemeFg = %d, want ANSI white (7)", tt.profile, ansi)
		}
	}
}
