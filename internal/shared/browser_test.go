package shared

import (
	"strings"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	original := getRuntime
	t.Cleanup(func() { getRuntime = original })

	tt := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "cmd"},
		{goos: "plan9", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.goos, func(t *testing.T) {
			getRuntime = func() string { return tc.goos }

			cmd, err := browserCommand(GeniusClientsURL)
			if (err != nil) != tc.wantErr {
				t.Fatalf("browserCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if !strings.HasSuffix(cmd.Path, tc.want) && cmd.Args[0] != tc.want {
				t.Errorf("expected command %s, got %v", tc.want, cmd.Args)
			}
			if cmd.Args[len(cmd.Args)-1] != GeniusClientsURL {
				t.Errorf("expected URL as last argument, got %v", cmd.Args)
			}
		})
	}
}
