package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fragment with issuer marker",
			in:   "https://waitlist.example.com/app#iss=https%3A%2F%2Fid.example.com%2Frealms%2Fwaitlist",
			want: "/app",
		},
		{
			name: "fragment with state and issuer",
			in:   "https://waitlist.example.com/app#state=xyz&iss=https%3A%2F%2Fid.example.com",
			want: "/app",
		},
		{
			name: "hash router location with issuer",
			in:   "https://waitlist.example.com/#/welcome?iss=https%3A%2F%2Fid.example.com",
			want: "/",
		},
		{
			name: "issuer in query",
			in:   "https://waitlist.example.com/app?iss=https%3A%2F%2Fid.example.com&code=abc",
			want: "/app",
		},
		{
			name: "no issuer marker is left untouched",
			in:   "https://waitlist.example.com/app?utm=x#section",
			want: "https://waitlist.example.com/app?utm=x#section",
		},
		{
			name: "bare URL untouched",
			in:   "https://waitlist.example.com/app",
			want: "https://waitlist.example.com/app",
		},
		{
			name: "issuer marker with empty path",
			in:   "https://waitlist.example.com#iss=https%3A%2F%2Fid.example.com",
			want: "/",
		},
		{
			name: "substring of another parameter does not count",
			in:   "https://waitlist.example.com/app#dismiss=true",
			want: "https://waitlist.example.com/app#dismiss=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLocation(tt.in))
		})
	}
}
