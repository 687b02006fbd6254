package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDarkVersion(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{text: "This mission requires NewDark 1.22 to run.", want: "1.22", wantOK: true},
		{text: "Install NewDark v1.2 first", want: "1.20", wantOK: true},
		{text: "Made with Dark Engine version 1.26", want: "1.26", wantOK: true},
		{text: "Uses 1.19 NewDark features", want: "1.19", wantOK: true},
		{text: "Tested with Thief 2 v1.18"},
		{text: "Built for NewDark 2.1"},
		{text: "Love Thief 1.5 is a great mission"},
		{text: "No engine requirements at all"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := NewDarkVersion(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.20", normalizeVersion("1.2"))
	assert.Equal(t, "1.25", normalizeVersion("1.25."))
	assert.Equal(t, "1.19", normalizeVersion(".1.19"))
}
