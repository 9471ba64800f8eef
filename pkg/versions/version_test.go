package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVersionInfo(t *testing.T) {
	t.Parallel()

	noVCS := func() (string, string) { return "", "" }
	withVCS := func() (string, string) { return "0123456789abcdef", "2024-06-10T08:30:00Z" }

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		vcs           func() (string, string)
		wantVersion   string
		wantCommit    string
		wantBuildDate string
	}{
		{
			name:          "release build keeps ldflags values",
			version:       "v1.4.0",
			commit:        "abc",
			buildDate:     "2024-06-10T08:30:00Z",
			vcs:           withVCS,
			wantVersion:   "v1.4.0",
			wantCommit:    "abc",
			wantBuildDate: "2024-06-10 08:30:00 UTC",
		},
		{
			name:          "dev build reads vcs settings",
			version:       "dev",
			commit:        unknownStr,
			buildDate:     unknownStr,
			vcs:           withVCS,
			wantVersion:   "build-01234567",
			wantCommit:    "0123456789abcdef",
			wantBuildDate: "2024-06-10 08:30:00 UTC",
		},
		{
			name:          "dev build without vcs",
			version:       "dev",
			commit:        unknownStr,
			buildDate:     unknownStr,
			vcs:           noVCS,
			wantVersion:   "dev",
			wantCommit:    unknownStr,
			wantBuildDate: unknownStr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := buildVersionInfo(tt.version, tt.commit, tt.buildDate, tt.vcs)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
		})
	}
}
