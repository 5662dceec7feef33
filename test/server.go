//go:build e2e

package test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	e2eJWTSecret = "test-e2e-secret-with-32-plus-characters-for-hs256-validation"
	stderrTail   = 64 * 1024
)

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// serverProcess is one running tourbook server.
type serverProcess struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stderr  *tailBuffer
	baseURL string
}

// serverEnv builds the process environment; extra wins over the defaults.
func serverEnv(mongoURI, port string, extra map[string]string) []string {
	vars := map[string]string{
		"MONGO_URI":     mongoURI,
		"MONGO_DB_NAME": e2eDBName,
		"JWT_SECRET":    e2eJWTSecret,
		"LOG_LEVEL":     "info",
		"BCRYPT_COST":   "10",
		"MAIL_DRIVER":   "log",
		"APP_PORT":      port,
	}
	for k, v := range extra {
		vars[k] = v
	}

	env := os.Environ()
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// launch starts the server binary, or `go run` when BIN_SERVER is unset.
func launch(ctx context.Context, t *testing.T, mongoURI string, extra map[string]string) *serverProcess {
	t.Helper()

	port, err := randomPort()
	require.NoError(t, err)

	srvCtx, cancel := context.WithCancel(ctx)
	var cmd *exec.Cmd
	if bin := os.Getenv("BIN_SERVER"); bin != "" {
		cmd = exec.CommandContext(srvCtx, bin)
	} else {
		cmd = exec.CommandContext(srvCtx, "go", "run", "./cmd/server")
		cmd.Dir = "../"
	}

	// own process group so `go run` children die with it
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = serverEnv(mongoURI, port, extra)
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr

	t.Logf("launching server on :%s", port)
	if err := cmd.Start(); err != nil {
		cancel()
		require.NoError(t, err)
	}

	return &serverProcess{
		cmd:     cmd,
		cancel:  cancel,
		stderr:  stderr,
		baseURL: "http://localhost:" + port,
	}
}

func (p *serverProcess) stop(t *testing.T) {
	t.Helper()
	p.cancel()
	if pgid, err := syscall.Getpgid(p.cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}

	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
	}
}

func (p *serverProcess) dumpStderr(t *testing.T, why string) {
	t.Helper()
	if out := p.stderr.String(); out != "" {
		t.Logf("server stderr (%s):\n%s", why, out)
	}
}

// waitHealthy polls /healthz until it answers 200 or timeout passes.
func (p *serverProcess) waitHealthy(timeout time.Duration) error {
	url := p.baseURL + "/healthz"
	client := &http.Client{Timeout: 2 * time.Second}

	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); time.Sleep(200 * time.Millisecond) {
		resp, err := client.Get(url)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}
	return fmt.Errorf("server never became healthy on %s", url)
}
