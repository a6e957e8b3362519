package config

import "testing"

func TestTurnParamsDefaults(t *testing.T) {
	params := AIConfig{}.TurnParams()

	if *params.Temperature != 0.7 || *params.TopP != 0.9 || *params.MaxTokens != 500 {
		t.Fatalf("unexpected turn defaults: temp=%v topP=%v max=%v", *params.Temperature, *params.TopP, *params.MaxTokens)
	}
}

func TestSummaryParamsDefaults(t *testing.T) {
	params := AIConfig{}.SummaryParams()

	if *params.Temperature != 0.5 || *params.MaxTokens != 800 {
		t.Fatalf("unexpected summary defaults: temp=%v max=%v", *params.Temperature, *params.MaxTokens)
	}
	if params.TopP != nil {
		t.Fatal("summary requests must not pin top_p")
	}
}

func TestParseModelListDefaultCascade(t *testing.T) {
	models := parseModelList("")

	want := []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-1.5-flash"}
	if len(models) != len(want) {
		t.Fatalf("expected %d models, got %v", len(want), models)
	}
	for i, name := range want {
		if models[i] != name {
			t.Fatalf("cascade[%d] = %q, want %q", i, models[i], name)
		}
	}
}

func TestParseModelListCustom(t *testing.T) {
	models := parseModelList(" gemini-2.5-pro , ,gemini-2.5-flash ")

	if len(models) != 2 || models[0] != "gemini-2.5-pro" || models[1] != "gemini-2.5-flash" {
		t.Fatalf("unexpected models: %v", models)
	}
}

func TestEnabledRequiresKey(t *testing.T) {
	cfg := AIConfig{Models: []string{"gemini-2.5-flash"}}
	if cfg.Enabled() {
		t.Fatal("must be disabled without an API key")
	}

	cfg.APIKey = "key"
	if !cfg.Enabled() {
		t.Fatal("must be enabled with a Gemini key")
	}

	ark := AIConfig{Provider: "ark", Models: []string{"doubao"}, ArkAccessKey: "ak"}
	if ark.Enabled() {
		t.Fatal("ark with only an access key must stay disabled")
	}
	ark.ArkSecretKey = "sk"
	if !ark.Enabled() {
		t.Fatal("ark with AK+SK must be enabled")
	}
}
