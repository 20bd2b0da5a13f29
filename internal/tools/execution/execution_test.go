package execution

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dodoproxy/dodo-proxy/internal/engine"
	"github.com/dodoproxy/dodo-proxy/internal/sandbox"
)

// MockRunner is a mock implementation of the Runner interface.
type MockRunner struct {
	RunCmdFunc func(ctx context.Context, repoDir, name string, args []string, timeout time.Duration) (sandbox.Result, error)
}

func (m *MockRunner) RunCmd(ctx context.Context, repoDir, name string, args []string, timeout time.Duration) (sandbox.Result, error) {
	if m.RunCmdFunc != nil {
		return m.RunCmdFunc(ctx, repoDir, name, args, timeout)
	}
	return sandbox.Result{}, nil
}

func TestRunCmdImpl(t *testing.T) {
	tests := []struct {
		name           string
		cmd            string
		args           string
		allowed        bool
		mockResult     sandbox.Result
		mockErr        error
		expectedStatus string
		expectedStdout string
	}{
		{
			name:           "Allowed command",
			cmd:            "go",
			args:           "version",
			allowed:        true,
			mockResult:     sandbox.Result{Stdout: "go version 1.20", Code: 0},
			expectedStatus: "ok", // runCmdImpl's status for a zero exit; the loop below does not check it
			expectedStdout: "go version 1.20",
		},
		{
			name:           "Disallowed command",
			cmd:            "forbidden_cmd",
			args:           "--some-arg",
			allowed:        false,
			expectedStdout: "",
		},
		{
			name:           "Git command",
			cmd:            "git",
			args:           "status",
			allowed:        true,
			mockResult:     sandbox.Result{Stdout: "On branch main", Code: 0},
			expectedStdout: "On branch main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{
				RunCmdFunc: func(ctx context.Context, repoDir, name string, args []string, timeout time.Duration) (sandbox.Result, error) {
					return tt.mockResult, tt.mockErr
				},
			}

			resultJSON, err := runCmdImpl(context.Background(), runner, "/tmp", tt.cmd, tt.args, 0, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var execResult engine.ExecutionResult
			if err := json.Unmarshal([]byte(resultJSON), &execResult); err != nil {
				t.Fatalf("failed to unmarshal result: %v", err)
			}

			if !tt.allowed {
				if execResult.Stderr == "" {
					t.Error("expected stderr for disallowed command")
				}
				return
			}

			if execResult.Stdout != tt.expectedStdout {
				t.Errorf("expected stdout %q, got %q", tt.expectedStdout, execResult.Stdout)
			}
		})
	}
}

func TestRunBuildImpl(t *testing.T) {
	// workspace.DetectProjectType reads the real filesystem, so only the
	// "unknown" project type path is covered here: an empty directory is
	// reported as unavailable without the runner being called.
	called := false
	runner := &MockRunner{
		RunCmdFunc: func(ctx context.Context, repoDir, name string, args []string, timeout time.Duration) (sandbox.Result, error) {
			called = true
			return sandbox.Result{}, nil
		},
	}

	resultJSON, err := runBuildImpl(context.Background(), runner, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var execResult engine.ExecutionResult
	if err := json.Unmarshal([]byte(resultJSON), &execResult); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if execResult.Status != "unavailable" || execResult.Reason != "not_configured" {
		t.Errorf("expected unavailable/not_configured, got %q/%q", execResult.Status, execResult.Reason)
	}
	if called {
		t.Error("runner was called for an unknown project type")
	}
}
