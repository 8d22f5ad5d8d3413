package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const catalog = `
artifacts:
- coordinate: org.example:app:1.0
  dependencies:
  - coordinate: org.example:lib:[1.0,2.0)
  - coordinate: org.example:util:1.0
    scope: runtime
- coordinate: org.example:lib:1.4
  dependencies:
  - coordinate: org.example:util:0.9
- coordinate: org.example:util:0.9
- coordinate: org.example:util:1.0
`

// TestE2ESmoke_RepositoryServer starts the repository server and resolves
// through it with the depresolve CLI, metadata and files both over gRPC.
func TestE2ESmoke_RepositoryServer(t *testing.T) {
	if os.Getenv("DEPRESOLVE_E2E") == "" {
		t.Skip("set DEPRESOLVE_E2E=1 to run the repository server smoke test")
	}

	repoRoot := findRepoRoot(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	work := t.TempDir()
	served := filepath.Join(work, "served")
	for _, f := range []string{
		"org/example/lib/1.4/lib-1.4.jar",
		"org/example/util/1.0/util-1.0.jar",
	} {
		writeFile(t, filepath.Join(served, filepath.FromSlash(f)), f)
	}
	writeFile(t, filepath.Join(work, "catalog.yaml"), catalog)

	grpcPort, metricsPort, probePort := pickFreePort(t), pickFreePort(t), pickFreePort(t)
	serverEnv := append(os.Environ(),
		fmt.Sprintf("DEPRESOLVE_SERVER_LISTEN=127.0.0.1:%d", grpcPort),
		fmt.Sprintf("DEPRESOLVE_SERVER_METRICSADDR=127.0.0.1:%d", metricsPort),
		fmt.Sprintf("DEPRESOLVE_SERVER_PROBEADDR=127.0.0.1:%d", probePort),
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverCmd := exec.CommandContext(serverCtx, "go", "run", ".",
		"-catalog", filepath.Join(work, "catalog.yaml"),
		"-root", served,
	)
	serverCmd.Dir = repoRoot
	serverCmd.Env = serverEnv
	var serverOut bytes.Buffer
	serverCmd.Stdout = &serverOut
	serverCmd.Stderr = &serverOut
	if err := serverCmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		serverCancel()
		_ = serverCmd.Wait()
	})

	httpClient := &http.Client{Timeout: 2 * time.Second}
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz/", probePort)
	if err := wait.PollUntilContextTimeout(ctx, 500*time.Millisecond, 2*time.Minute, true, func(ctx context.Context) (bool, error) {
		resp, err := httpClient.Get(healthURL)
		if err != nil {
			return false, nil
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK, nil
	}); err != nil {
		t.Logf("server output:\n%s", serverOut.String())
		t.Fatalf("server never became healthy: %v", err)
	}

	cfg := filepath.Join(work, "depresolve.yaml")
	writeFile(t, cfg, fmt.Sprintf("localRepository: %s\nrepositories:\n- id: smoke\n  url: grpc://127.0.0.1:%d\n",
		filepath.Join(work, "cache"), grpcPort))

	out := runOrFail(t, ctx, repoRoot, nil, "go", "run", "./cmd/depresolve",
		"-config", cfg,
		"-server", fmt.Sprintf("127.0.0.1:%d", grpcPort),
		"org.example:app:1.0",
	)
	for _, want := range []string{
		"org.example:lib:jar:1.4:compile -> ",
		"org.example:util:jar:1.0:runtime -> ",
	} {
		if !strings.Contains(out, want) {
			t.Logf("server output:\n%s", serverOut.String())
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	metricsURL := fmt.Sprintf("http://127.0.0.1:%d/metrics", metricsPort)
	resp, err := httpClient.Get(metricsURL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics endpoint returned %s", resp.Status)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func pickFreePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// e2e/smoke_test.go -> repo root
	return filepath.Clean(filepath.Join(filepath.Dir(file), ".."))
}

func runOrFail(t *testing.T, ctx context.Context, dir string, env []string, name string, args ...string) string {
	t.Helper()

	out, err := runOut(ctx, dir, env, name, args...)
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return out
}

func runOut(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
