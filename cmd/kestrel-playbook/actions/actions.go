package actions

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host-control actions. Firewall actions tag their rules with a kestrel
// comment so add/delete stays idempotent; kill treats a missing process as
// already terminated; quarantine is reversible by construction.

const (
	isolateInComment  = "kestrel-isolate-in"
	isolateOutComment = "kestrel-isolate-out"
)

// HostActions builds the mandatory action set against a command runner and
// a quarantine directory.
type HostActions struct {
	runner        Runner
	quarantineDir string
}

func NewHostActions(runner Runner, quarantineDir string) *HostActions {
	return &HostActions{runner: runner, quarantineDir: quarantineDir}
}

// RegisterAll wires the four mandatory actions into the registry.
func (h *HostActions) RegisterAll(registry *Registry) {
	registry.Register("isolate_host", h.IsolateHost, h.RollbackIsolateHost, true)
	registry.Register("kill_process", h.KillProcess, h.RollbackKillProcess, false)
	registry.Register("block_ip", h.BlockIP, h.RollbackBlockIP, false)
	registry.Register("quarantine_file", h.QuarantineFile, h.RollbackQuarantineFile, false)
}

// --- isolate_host ---

func isolateRuleArgs(chain, comment string) []string {
	return []string{chain, "-j", "DROP", "-m", "comment", "--comment", comment}
}

// IsolateHost adds inbound and outbound block-all rules. Existing kestrel
// rules are deleted first to keep the action idempotent.
func (h *HostActions) IsolateHost(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	// Ignore delete errors: the rules may simply not exist yet.
	h.runner.Run(ctx, "iptables", append([]string{"-D"}, isolateRuleArgs("INPUT", isolateInComment)...)...)
	h.runner.Run(ctx, "iptables", append([]string{"-D"}, isolateRuleArgs("OUTPUT", isolateOutComment)...)...)

	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-I"}, isolateRuleArgs("INPUT", isolateInComment)...)...); err != nil {
		return nil, fmt.Errorf("isolate inbound rule failed: %w", err)
	}
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-I"}, isolateRuleArgs("OUTPUT", isolateOutComment)...)...); err != nil {
		return nil, fmt.Errorf("isolate outbound rule failed: %w", err)
	}

	return map[string]interface{}{"in": isolateInComment, "out": isolateOutComment}, nil
}

func (h *HostActions) RollbackIsolateHost(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	var failures []string
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-D"}, isolateRuleArgs("INPUT", isolateInComment)...)...); err != nil {
		failures = append(failures, err.Error())
	}
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-D"}, isolateRuleArgs("OUTPUT", isolateOutComment)...)...); err != nil {
		failures = append(failures, err.Error())
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("isolate rollback incomplete: %s", strings.Join(failures, "; "))
	}
	return map[string]interface{}{"deleted": []string{isolateInComment, isolateOutComment}}, nil
}

// --- kill_process ---

func pidFromParams(params map[string]interface{}) (int, error) {
	switch v := params["pid"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		pid, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("pid %q is not a number", v)
		}
		return pid, nil
	}
	return 0, fmt.Errorf("pid param missing or invalid")
}

// KillProcess force-terminates the PID. A process that no longer exists is
// already_terminated, not an error.
func (h *HostActions) KillProcess(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	pid, err := pidFromParams(params)
	if err != nil {
		return nil, err
	}
	if pid <= 0 {
		return nil, fmt.Errorf("refusing to kill pid %d", pid)
	}

	if _, stderr, err := h.runner.Run(ctx, "kill", "-9", strconv.Itoa(pid)); err != nil {
		combined := strings.ToLower(stderr + " " + err.Error())
		if strings.Contains(combined, "no such process") || strings.Contains(combined, "not found") {
			return map[string]interface{}{"status": "already_terminated", "pid": pid}, nil
		}
		return nil, fmt.Errorf("kill pid %d failed: %w", pid, err)
	}

	return map[string]interface{}{"status": "killed", "pid": pid}, nil
}

// RollbackKillProcess is a noop: a killed process cannot come back.
func (h *HostActions) RollbackKillProcess(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"status": "noop", "note": "cannot rollback kill_process"}, nil
}

// --- block_ip ---

func blockComment(ip, dir string) string {
	return fmt.Sprintf("kestrel-block-%s-%s", ip, dir)
}

func blockRuleArgs(ip, chain string) []string {
	dir, flag := "in", "-s"
	if chain == "OUTPUT" {
		dir, flag = "out", "-d"
	}
	return []string{chain, flag, ip, "-j", "DROP", "-m", "comment", "--comment", blockComment(ip, dir)}
}

// BlockIP adds bidirectional block rules tagged by IP, delete-first for
// idempotency.
func (h *HostActions) BlockIP(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	ip, _ := params["ip"].(string)
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("ip param missing")
	}

	h.runner.Run(ctx, "iptables", append([]string{"-D"}, blockRuleArgs(ip, "INPUT")...)...)
	h.runner.Run(ctx, "iptables", append([]string{"-D"}, blockRuleArgs(ip, "OUTPUT")...)...)

	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-I"}, blockRuleArgs(ip, "INPUT")...)...); err != nil {
		return nil, fmt.Errorf("block inbound rule for %s failed: %w", ip, err)
	}
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-I"}, blockRuleArgs(ip, "OUTPUT")...)...); err != nil {
		return nil, fmt.Errorf("block outbound rule for %s failed: %w", ip, err)
	}

	return map[string]interface{}{"in": blockComment(ip, "in"), "out": blockComment(ip, "out")}, nil
}

func (h *HostActions) RollbackBlockIP(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	ip, _ := params["ip"].(string)
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("ip param missing")
	}

	var failures []string
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-D"}, blockRuleArgs(ip, "INPUT")...)...); err != nil {
		failures = append(failures, err.Error())
	}
	if _, _, err := h.runner.Run(ctx, "iptables", append([]string{"-D"}, blockRuleArgs(ip, "OUTPUT")...)...); err != nil {
		failures = append(failures, err.Error())
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("block rollback incomplete: %s", strings.Join(failures, "; "))
	}
	return map[string]interface{}{"deleted": []string{blockComment(ip, "in"), blockComment(ip, "out")}}, nil
}

// --- quarantine_file ---

// quarantinePath derives the destination from the original path, so
// rollback can recompute it without extra state.
func (h *HostActions) quarantinePath(original string) string {
	sum := sha1.Sum([]byte(original))
	tag := hex.EncodeToString(sum[:])[:8]
	return filepath.Join(h.quarantineDir, fmt.Sprintf("%s.%s.quar", filepath.Base(original), tag))
}

// QuarantineFile moves the file into the quarantine directory.
func (h *HostActions) QuarantineFile(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path param missing")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	dst := h.quarantinePath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("quarantine dir failed: %w", err)
	}
	if err := moveFile(path, dst); err != nil {
		return nil, fmt.Errorf("quarantine move failed: %w", err)
	}

	return map[string]interface{}{"quarantined_to": dst}, nil
}

// RollbackQuarantineFile moves the file back to its original path.
func (h *HostActions) RollbackQuarantineFile(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path param missing")
	}

	src := h.quarantinePath(path)
	if _, err := os.Stat(src); err != nil {
		return map[string]interface{}{"status": "skipped", "reason": "not_in_quarantine"}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("restore dir failed: %w", err)
	}
	if err := moveFile(src, path); err != nil {
		return nil, fmt.Errorf("restore move failed: %w", err)
	}

	return map[string]interface{}{"restored": path}, nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
