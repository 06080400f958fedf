package bot

import "testing"

func TestMentionDetectorMatch(t *testing.T) {
	d, err := NewMentionDetector("@bot")
	if err != nil {
		t.Fatalf("NewMentionDetector: %v", err)
	}

	tests := []struct {
		name    string
		text    string
		payload string
		ok      bool
	}{
		{"payload after trigger", "hello @bot, what's the weather", "what's the weather", true},
		{"trigger at start", "@bot tell me a joke", "tell me a joke", true},
		{"trigger at end", "are you awake @bot", "are you awake", true},
		{"case insensitive", "@BOT hi", "hi", true},
		{"bare trigger", "@bot", "", true},
		{"no mention", "just chatting about the game", "", false},
		{"embedded in word", "check out robo@botanica.example", "", false},
		{"trigger substring", "@bots are everywhere", "", false},
		{"empty message", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok := d.Detect(tt.text)
			if ok != tt.ok {
				t.Fatalf("Detect(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if payload != tt.payload {
				t.Errorf("Detect(%q) payload = %q, want %q", tt.text, payload, tt.payload)
			}
		})
	}
}

func TestMentionDetectorPlainName(t *testing.T) {
	d, err := NewMentionDetector("cooperbot")
	if err != nil {
		t.Fatalf("NewMentionDetector: %v", err)
	}
	if _, ok := d.Detect("hey cooperbot how are you"); !ok {
		t.Error("expected plain name mention to match")
	}
	if _, ok := d.Detect("supercooperbot99 is live"); ok {
		t.Error("must not match name embedded in another word")
	}
	if _, ok := d.Detect("hey @cooperbot hi"); !ok {
		t.Error("expected @-prefixed form of plain name to match")
	}
}

func TestMentionDetectorEmptyTrigger(t *testing.T) {
	if _, err := NewMentionDetector("  "); err == nil {
		t.Error("expected error for empty trigger")
	}
}

func TestMentionDetectorIsPure(t *testing.T) {
	d, err := NewMentionDetector("@bot")
	if err != nil {
		t.Fatalf("NewMentionDetector: %v", err)
	}
	for i := 0; i < 3; i++ {
		payload, ok := d.Detect("hello @bot, what's the weather")
		if !ok || payload != "what's the weather" {
			t.Fatalf("iteration %d: got (%q, %v)", i, payload, ok)
		}
	}
}
