package remoteexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultScriptTimeout bounds one procedure invocation.
const DefaultScriptTimeout = 60 * time.Second

// ScriptRunner executes named, version-controlled procedure scripts from a
// directory — the dev/demo stand-in for a production remote channel. The
// action "linux.discover" maps to <dir>/linux.discover.sh, invoked with the
// host address as argv[1] and params as KEY=VALUE environment variables
// prefixed MISSION_PARAM_. If the last stdout line is a JSON object it is
// parsed as discovered facts.
type ScriptRunner struct {
	Dir     string
	Timeout time.Duration
}

// NewScriptRunner builds a runner over the procedure directory.
func NewScriptRunner(dir string) *ScriptRunner {
	return &ScriptRunner{Dir: dir, Timeout: DefaultScriptTimeout}
}

func (r *ScriptRunner) Run(ctx context.Context, address, action string, params map[string]string) (Outcome, error) {
	script := filepath.Join(r.Dir, action+".sh")
	if _, err := os.Stat(script); err != nil {
		return Outcome{}, fmt.Errorf("procedure %s: %w", action, err)
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script, address)
	cmd.Env = os.Environ()
	for k, v := range params {
		cmd.Env = append(cmd.Env, "MISSION_PARAM_"+strings.ToUpper(k)+"="+v)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Outcome{}, fmt.Errorf("procedure %s timed out after %s", action, timeout)
	}

	out := Outcome{
		Success: runErr == nil,
		Stdout:  Truncate(stdout.String()),
		Stderr:  Truncate(stderr.String()),
	}
	out.Facts = parseFactsLine(stdout.String())
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// could not even start the procedure
			return Outcome{}, fmt.Errorf("run procedure %s: %w", action, runErr)
		}
	}
	return out, nil
}

// parseFactsLine returns the trailing stdout line as facts when it is a
// JSON object, nil otherwise.
func parseFactsLine(stdout string) map[string]any {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) == 0 {
		return nil
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, "{") {
		return nil
	}
	var facts map[string]any
	if err := json.Unmarshal([]byte(last), &facts); err != nil {
		return nil
	}
	return facts
}
