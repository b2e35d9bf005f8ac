package ident_test

import (
	"testing"

	"github.com/soundpilot/soundpilot/internal/ident"
)

func TestMatcher_UnderscoredLabelMatch(t *testing.T) {
	t.Parallel()

	m := ident.NewMatcher()
	labels := []string{"lights_on", "fan_off", "garage_door"}

	// A spoken-style query should find the underscored enrolled label.
	suggestion, conf, matched := m.Suggest("lights on", labels)
	if !matched {
		t.Fatalf("Suggest(%q): matched=false, want true", "lights on")
	}
	if suggestion != "lights_on" {
		t.Errorf("Suggest(%q): suggestion=%q, want lights_on", "lights on", suggestion)
	}
	if conf < 0.7 {
		t.Errorf("Suggest(%q): confidence=%f, want >= 0.7", "lights on", conf)
	}
}

func TestMatcher_TypoMatch(t *testing.T) {
	t.Parallel()

	m := ident.NewMatcher()
	labels := []string{"lights_on", "fan_off"}

	suggestion, _, matched := m.Suggest("lites_on", labels)
	if !matched {
		t.Fatalf("Suggest(%q): matched=false, want true", "lites_on")
	}
	if suggestion != "lights_on" {
		t.Errorf("Suggest(%q): suggestion=%q, want lights_on", "lites_on", suggestion)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := ident.NewMatcher()
	labels := []string{"lights_on", "fan_off"}

	suggestion, conf, matched := m.Suggest("zzzqqq", labels)
	if matched {
		t.Fatalf("Suggest(%q): matched=true, want false", "zzzqqq")
	}
	if suggestion != "zzzqqq" {
		t.Errorf("Suggest(%q): suggestion=%q, want input unchanged", "zzzqqq", suggestion)
	}
	if conf != 0 {
		t.Errorf("Suggest(%q): confidence=%f, want 0", "zzzqqq", conf)
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := ident.NewMatcher()

	if _, _, matched := m.Suggest("", []string{"lights_on"}); matched {
		t.Error("empty query should not match")
	}
	if _, _, matched := m.Suggest("lights", nil); matched {
		t.Error("empty label set should not match")
	}
}
