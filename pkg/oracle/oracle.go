package oracle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/dfsshred/shredder/pkg/types"
)

// Oracle locates the data nodes holding replicas of a DFS path's
// blocks.
type Oracle interface {
	Locate(ctx context.Context, target string) (types.Blocklists, error)
}

// ExecOracle invokes the DFS's fsck-equivalent command as a subprocess
// and parses its stdout (spec §6).
type ExecOracle struct {
	// Command is the fsck-equivalent binary; defaults to "hdfs" when
	// empty.
	Command string
	Timeout time.Duration
}

// NewExecOracle returns an ExecOracle with the default command and a
// 5-minute timeout, matching the teacher's ExecChecker default of a
// bounded, not unlimited, subprocess lifetime.
func NewExecOracle() *ExecOracle {
	return &ExecOracle{Command: "hdfs", Timeout: 5 * time.Minute}
}

// Locate runs "{Command} fsck {target} -files -blocks -locations" and
// parses its output into a data-node-to-block-IDs mapping.
func (o *ExecOracle) Locate(ctx context.Context, target string) (types.Blocklists, error) {
	command := o.Command
	if command == "" {
		command = "hdfs"
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, command, "fsck", target, "-files", "-blocks", "-locations")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("oracle: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("oracle: start %s fsck: %w", command, err)
	}

	blocklists, parseErr := Parse(stdout)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, fmt.Errorf("oracle: %s fsck %s: %w", command, target, waitErr)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return blocklists, nil
}

var (
	blockIDPattern  = regexp.MustCompile(`:(\S+) `)
	datanodePattern = regexp.MustCompile(`DatanodeInfoWithStorage\[([^\]]*)\]`)
)

// Parse reads a fsck-style block report from r as a lazy, finite,
// non-restartable line stream and returns the parsed data-node to
// block-ID mapping (spec §6, §9). Non-block lines (anything not
// beginning with a digit) are skipped silently; leading/trailing
// whitespace on a line is tolerated.
func Parse(r io.Reader) (types.Blocklists, error) {
	out := types.Blocklists{}
	scanner := bufio.NewScanner(r)
	// fsck lines for large replicated files can be long; grow the
	// buffer beyond bufio's small default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !isDigit(line[0]) {
			continue
		}
		blockID, ips, ok := parseLine(line)
		if !ok {
			continue
		}
		for _, ip := range ips {
			out[ip] = append(out[ip], blockID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("oracle: read fsck output: %w", err)
	}
	return out, nil
}

func parseLine(line string) (blockID string, ips []string, ok bool) {
	idMatch := blockIDPattern.FindStringSubmatch(line)
	if idMatch == nil {
		return "", nil, false
	}
	blockID = rpartitionBeforeLastUnderscore(idMatch[1])

	nodeMatches := datanodePattern.FindAllStringSubmatch(line, -1)
	for _, m := range nodeMatches {
		entry := m[1]
		// Each comma-separated field is "IP:PORT,<storage id>,..."; the
		// IP is before the first colon of the first field.
		firstField := entry
		if idx := strings.Index(entry, ","); idx >= 0 {
			firstField = entry[:idx]
		}
		if idx := strings.Index(firstField, ":"); idx >= 0 {
			ips = append(ips, firstField[:idx])
		}
	}
	if blockID == "" || len(ips) == 0 {
		return "", nil, false
	}
	return blockID, ips, true
}

// rpartitionBeforeLastUnderscore returns the portion of s before its
// final underscore, e.g. "blk_1073839025_12345" -> "blk_1073839025".
func rpartitionBeforeLastUnderscore(s string) string {
	idx := strings.LastIndex(s, "_")
	if idx < 0 {
		return s
	}
	return s[:idx]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
