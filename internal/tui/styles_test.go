package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avitolog/avitolog/pkg/client"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderShimmerLogoContainsLetters(t *testing.T) {
	for _, frame := range []int{0, 7, 1000} {
		logo := renderShimmerLogo(frame)
		for _, ch := range "AVITOLOG" {
			if !strings.ContainsRune(logo, ch) {
				t.Errorf("frame %d: logo missing %q: %q", frame, ch, logo)
			}
		}
	}
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-5, 0},
		{0, 0},
		{127.9, 127},
		{300, 255},
	}
	for _, tc := range tests {
		if got := clampByte(tc.in); got != tc.want {
			t.Errorf("clampByte(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestHelpBar(t *testing.T) {
	bar := helpBar("j/k", "nav", "q", "quit")
	for _, want := range []string{"j/k", "nav", "q", "quit"} {
		if !strings.Contains(bar, want) {
			t.Errorf("helpBar missing %q: %q", want, bar)
		}
	}
	// a dangling key without a label is ignored
	if got := helpBar("x"); strings.Contains(got, "x") {
		t.Errorf("helpBar(odd) = %q", got)
	}
}

func TestHelpViewListsCommands(t *testing.T) {
	v := helpView()
	for _, want := range []string{"avitolog login", "avitolog ingest URL", "log in / log out"} {
		if !strings.Contains(v, want) {
			t.Errorf("helpView missing %q", want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tc := range tests {
		if got := formatTime(time.Now().Add(-tc.ago)); got != tc.want {
			t.Errorf("formatTime(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
	if got := formatTime(time.Time{}); got != "" {
		t.Errorf("formatTime(zero) = %q, want empty", got)
	}
}

func TestTruncStr(t *testing.T) {
	if got := truncStr("велосипед", 5); got != "вело…" {
		t.Errorf("truncStr = %q", got)
	}
	if got := truncStr("bike", 10); got != "bike" {
		t.Errorf("truncStr short = %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("a\n  b\tc "); got != "a b c" {
		t.Errorf("oneLine = %q", got)
	}
}

func TestTruncateToHeight(t *testing.T) {
	s := "1\n2\n3\n4\n"
	if got := truncateToHeight(s, 2); got != "1\n2\n" {
		t.Errorf("truncateToHeight = %q", got)
	}
	if got := truncateToHeight(s, 0); got != s {
		t.Errorf("truncateToHeight(0) = %q", got)
	}
}

func TestErrorText(t *testing.T) {
	if got := errorText(errors.New("dial tcp: refused"), "Could not load"); got != "Could not load" {
		t.Errorf("errorText(plain) = %q, want fallback", got)
	}
	err := &client.HTTPError{StatusCode: 400, Detail: "Email already registered"}
	if got := errorText(err, "Registration failed"); got != "Email already registered" {
		t.Errorf("errorText(detail) = %q", got)
	}
}
