package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "ok", input: "alice", wantErr: nil},
		{name: "max length", input: strings.Repeat("a", MaxUsernameLen), wantErr: nil},
		{name: "empty", input: "", wantErr: ErrUsernameEmpty},
		{name: "too long", input: strings.Repeat("a", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
