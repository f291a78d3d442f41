package iphex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"ipv4", "192.168.0.1", "v4-C0A80001", false},
		{"ipv4 zero octets", "10.0.0.255", "v4-0A0000FF", false},
		{"ipv4 with whitespace", " 127.0.0.1 ", "v4-7F000001", false},
		{"ipv6", "2001:db8::1", "v6-20010DB8000000000000000000000001", false},
		{"ipv6 full form", "2001:0db8:0000:0000:0000:0000:0000:0001", "v6-20010DB8000000000000000000000001", false},
		{"ipv4-mapped ipv6 normalizes to v4", "::ffff:192.168.0.1", "v4-C0A80001", false},
		{"empty", "", "", true},
		{"hostname", "example.org", "", true},
		{"malformed", "300.1.1.1", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromString(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFromString_Stable(t *testing.T) {
	a, err := FromString("2001:db8::1")
	require.NoError(t, err)
	b, err := FromString("2001:DB8:0:0::1")
	require.NoError(t, err)
	require.Equal(t, a, b)
}
