package kconfig

import "testing"

func TestDefaultMatchesSpecNamedConstants(t *testing.T) {
	cfg := Default()
	if cfg.MaxSymlinkDepth != 8 {
		t.Fatalf("MaxSymlinkDepth = %d, want 8", cfg.MaxSymlinkDepth)
	}
	if cfg.TimerHz != 1000 {
		t.Fatalf("TimerHz = %d, want 1000", cfg.TimerHz)
	}
}

func TestParseCmdlineOverridesNamedTunables(t *testing.T) {
	cfg, err := ParseCmdline([]byte("max_cpus=1 waitqueue_capacity=4 ignored_unknown_key=xyz"))
	if err != nil {
		t.Fatalf("ParseCmdline: %v", err)
	}
	if cfg.MaxCPUs != 1 {
		t.Fatalf("MaxCPUs = %d, want 1", cfg.MaxCPUs)
	}
	if cfg.WaitQueueCapacity != 4 {
		t.Fatalf("WaitQueueCapacity = %d, want 4", cfg.WaitQueueCapacity)
	}
	if cfg.MaxSymlinkDepth != 8 {
		t.Fatal("un-overridden fields must keep their default")
	}
}

func TestParseCmdlineRejectsMalformedInt(t *testing.T) {
	_, err := ParseCmdline([]byte("max_cpus=not-a-number"))
	if err == nil {
		t.Fatal("expected a ParseError")
	}
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Key != "max_cpus" {
		t.Fatalf("ParseError.Key = %q, want max_cpus", pe.Key)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func TestParseCmdlineDecodesLatin1HighBitBytes(t *testing.T) {
	// 0xE9 is Latin-1 'é', invalid as a standalone UTF-8 byte.
	raw := append([]byte("note=caf"), 0xE9, ' ', 'm', 'a', 'x', '_', 'c', 'p', 'u', 's', '=', '2')
	cfg, err := ParseCmdline(raw)
	if err != nil {
		t.Fatalf("ParseCmdline: %v", err)
	}
	if cfg.MaxCPUs != 2 {
		t.Fatalf("MaxCPUs = %d, want 2 (decoding must not desync the tokenizer)", cfg.MaxCPUs)
	}
}
