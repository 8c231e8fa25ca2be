package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	tests := map[string]struct {
		script     string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		"success": {
			script:     "echo v1.2.3",
			wantStdout: "v1.2.3\n",
		},
		"failure code and stderr": {
			script:     "echo bad flag >&2; exit 4",
			wantCode:   4,
			wantStderr: "bad flag\n",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := Run(context.Background(), RunConfig{
				Name: "rclone",
				Path: "/bin/sh",
				Args: []string{"-c", tc.script},
				Dir:  t.TempDir(),
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.Code != tc.wantCode || res.Stdout != tc.wantStdout || res.Stderr != tc.wantStderr {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	start := time.Now()
	res, err := Run(context.Background(), RunConfig{
		Name:    "hang",
		Path:    "/bin/sh",
		Args:    []string{"-c", "echo started; sleep 30"},
		Dir:     t.TempDir(),
		Timeout: 300 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout did not kill the process group promptly")
	}
	if !strings.Contains(res.Stdout, "started") {
		t.Errorf("partial stdout lost: %q", res.Stdout)
	}
	if res.Code != -1 {
		t.Errorf("Code = %d, want -1 for a killed process", res.Code)
	}
}

func TestRun_MissingExecutable(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), RunConfig{Name: "ghost", Path: "/nonexistent/ghost"})
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("err = %v, want ErrExecutableNotFound", err)
	}
}
