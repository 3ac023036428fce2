package jira

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjectURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ProjectRef
	}{
		{
			name: "browse marker at root",
			raw:  "https://example.com/browse/project_key",
			want: ProjectRef{
				BaseURL:     "https://example.com",
				ContextPath: "",
				Key:         "project_key",
				UseTLS:      true,
				VerifyPeer:  true,
			},
		},
		{
			name: "projects marker at root",
			raw:  "https://example.com/projects/PROJ",
			want: ProjectRef{
				BaseURL:     "https://example.com",
				ContextPath: "",
				Key:         "PROJ",
				UseTLS:      true,
				VerifyPeer:  true,
			},
		},
		{
			name: "context path before marker",
			raw:  "https://example.com/non/empty/path/browse/PROJ",
			want: ProjectRef{
				BaseURL:     "https://example.com",
				ContextPath: "/non/empty/path",
				Key:         "PROJ",
				UseTLS:      true,
				VerifyPeer:  true,
			},
		},
		{
			name: "single segment context path",
			raw:  "https://example.com/jira/browse/PROJ",
			want: ProjectRef{
				BaseURL:     "https://example.com",
				ContextPath: "/jira",
				Key:         "PROJ",
				UseTLS:      true,
				VerifyPeer:  true,
			},
		},
		{
			name: "http means plaintext",
			raw:  "http://jira.internal:8080/browse/PROJ",
			want: ProjectRef{
				BaseURL:     "http://jira.internal:8080",
				ContextPath: "",
				Key:         "PROJ",
				UseTLS:      false,
				VerifyPeer:  false,
			},
		},
		{
			name: "trailing path after key is ignored",
			raw:  "https://example.com/browse/PROJ-123/activity",
			want: ProjectRef{
				BaseURL:     "https://example.com",
				ContextPath: "",
				Key:         "PROJ-123",
				UseTLS:      true,
				VerifyPeer:  true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProjectURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProjectURLMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no scheme", "example.com/browse/PROJ"},
		{"unsupported scheme", "ftp://example.com/browse/PROJ"},
		{"no marker", "https://example.com/some/other/path"},
		{"missing key after browse", "https://example.com/browse/"},
		{"missing key after projects", "https://example.com/projects/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProjectURL(tt.raw)
			require.Error(t, err)

			var malformed *MalformedURLError
			assert.True(t, errors.As(err, &malformed))
		})
	}
}

func TestParseProjectURLPrefersBrowseMarker(t *testing.T) {
	// Both markers present: the first convention in order wins.
	got, err := ParseProjectURL("https://example.com/browse/FIRST/projects/SECOND")
	require.NoError(t, err)
	assert.Equal(t, "FIRST", got.Key)
}
