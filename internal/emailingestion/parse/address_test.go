package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantName string
		wantAddr string
		wantOK   bool
	}{
		{
			name:     "display name with angle brackets",
			raw:      "John Smith <john@example.com>",
			wantName: "John Smith",
			wantAddr: "john@example.com",
			wantOK:   true,
		},
		{
			name:     "quoted display name",
			raw:      `"Smith, John" <john@example.com>`,
			wantName: "Smith, John",
			wantAddr: "john@example.com",
			wantOK:   true,
		},
		{
			name:     "bare address",
			raw:      "jane@example.com",
			wantAddr: "jane@example.com",
			wantOK:   true,
		},
		{
			name:     "bare address with surrounding whitespace",
			raw:      "  jane@example.com  ",
			wantAddr: "jane@example.com",
			wantOK:   true,
		},
		{
			name:   "no email present",
			raw:    "just a name",
			wantOK: false,
		},
		{
			name:   "empty input",
			raw:    "",
			wantOK: false,
		},
		{
			name:     "angle brackets win over earlier bare token",
			raw:      "fake@spoof.com <real@example.com>",
			wantName: "fake@spoof.com",
			wantAddr: "real@example.com",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, ok := ParseAddress(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantAddr, mb.Address)
				assert.Equal(t, tt.wantName, mb.Name)
			}
		})
	}
}

func TestParseAddressList(t *testing.T) {
	raw := `"Doe, Jane" <jane@x.com>, bob@y.com, not-an-address, Carol <carol@z.com>`
	boxes := ParseAddressList(raw)

	require.Len(t, boxes, 3)
	assert.Equal(t, "jane@x.com", boxes[0].Address)
	assert.Equal(t, "Doe, Jane", boxes[0].Name)
	assert.Equal(t, "bob@y.com", boxes[1].Address)
	assert.Equal(t, "carol@z.com", boxes[2].Address)
	assert.Equal(t, "Carol", boxes[2].Name)
}

func TestParseAddressList_OrderPreserved(t *testing.T) {
	addrs := Addresses("c@x.com, a@x.com, b@x.com")
	assert.Equal(t, []string{"c@x.com", "a@x.com", "b@x.com"}, addrs)
}

func TestAddresses_Empty(t *testing.T) {
	assert.Nil(t, Addresses(""))
	assert.Nil(t, Addresses("nothing useful here"))
}
