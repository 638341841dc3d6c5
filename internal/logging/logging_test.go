package logging

import "testing"

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: Options{}},
		{name: "json debug", opts: Options{Level: "DEBUG", Format: "json"}},
		{name: "console warn", opts: Options{Level: "warn", Format: "console"}},
		{name: "bad level", opts: Options{Level: "loud"}, wantErr: true},
		{name: "bad format", opts: Options{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := New(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%+v) expected error", tt.opts)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%+v) error = %v", tt.opts, err)
			}
			if l == nil {
				t.Fatalf("New(%+v) returned nil logger", tt.opts)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	l, err := New(Options{Level: "warn"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Desugar().Core().Enabled(-1) {
		t.Fatalf("debug enabled at warn level")
	}
	if !l.Desugar().Core().Enabled(1) {
		t.Fatalf("warn not enabled at warn level")
	}
}
