package vision

import (
	"testing"

	"anpr-locker/internal/domain/anpr"
)

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		name string
		key  int
		want anpr.Command
	}{
		{name: "no key", key: -1, want: anpr.CommandNone},
		{name: "quit", key: 'q', want: anpr.CommandQuit},
		{name: "reset", key: 'r', want: anpr.CommandReset},
		{name: "reset with modifier bits", key: 0x100000 | 'r', want: anpr.CommandReset},
		{name: "other letter", key: 'x', want: anpr.CommandNone},
		{name: "upper case ignored", key: 'Q', want: anpr.CommandNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyCommand(tt.key); got != tt.want {
				t.Errorf("KeyCommand(%d) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
