package viteutil

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/atolldev/atoll/kit/netutil"
)

const PortEnvName = "__ATOLL_VITE_PORT"

// Cmd manages a Vite child process (dev server or production build pass).
type Cmd struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	opts CmdOptions
	log  *slog.Logger
	port int
}

type CmdOptions struct {
	// e.g. "npx", "pnpm exec", "bunx"
	PackageManagerBaseCmd string
	// optional working directory for monorepos
	Dir string
	// optional, e.g. "vite.config.ts"
	ConfigFile string
	// dev server port preference; 0 means 5173
	DefaultPort int
}

func NewCmd(opts CmdOptions, log *slog.Logger) *Cmd {
	port := opts.DefaultPort
	if port == 0 {
		port = 5173
	}
	return &Cmd{opts: opts, log: log, port: port}
}

func (c *Cmd) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

func (c *Cmd) prep(args ...string) *exec.Cmd {
	base := strings.Fields(c.opts.PackageManagerBaseCmd)
	cmd := exec.Command(base[0], append(base[1:], args...)...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if c.opts.Dir != "" {
		cmd.Dir = c.opts.Dir
	}
	return cmd
}

// StartDev starts the Vite dev server, terminating any previous instance.
// The chosen port is published through PortEnvName for the render layer.
func (c *Cmd) StartDev() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}

	port, err := netutil.GetFreePort(c.port)
	if err != nil {
		return fmt.Errorf("viteutil: init vite port: %w", err)
	}
	c.port = port
	os.Setenv(PortEnvName, fmt.Sprintf("%d", port))

	args := []string{"vite",
		"--port", fmt.Sprintf("%d", port),
		"--strictPort", "true",
		"--clearScreen", "false",
	}
	if c.opts.ConfigFile != "" {
		args = append(args, "--config", c.opts.ConfigFile)
	}
	c.cmd = c.prep(args...)

	c.log.Info("starting vite (dev)", "command", strings.Join(c.cmd.Args, " "))
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("viteutil: start vite dev server: %w", err)
	}
	return nil
}

// BuildOptions configures one production build pass.
type BuildOptions struct {
	OutDir string
	// SSR manifest emission; both manifests land in OutDir/.vite
	WithSSRManifest bool
	// optional explicit entry inputs (island pass); empty means the
	// config file's default entries
	Entries []string
	// extra environment for the pass, e.g. ATOLL_BUILD_PASS=islands
	Env []string
}

// RunBuild runs `vite build` to completion.
func (c *Cmd) RunBuild(opts BuildOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	args := []string{"vite", "build",
		"--outDir", opts.OutDir,
		"--manifest", "true",
	}
	if opts.WithSSRManifest {
		args = append(args, "--ssrManifest", "true")
	}
	if c.opts.ConfigFile != "" {
		args = append(args, "--config", c.opts.ConfigFile)
	}

	cmd := c.prep(args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	if len(opts.Entries) > 0 {
		cmd.Env = append(cmd.Env, "ATOLL_BUILD_ENTRIES="+strings.Join(opts.Entries, ","))
	}

	c.log.Info("running vite build", "command", strings.Join(cmd.Args, " "), "outDir", opts.OutDir)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("viteutil: vite build: %w", err)
	}
	c.log.Info("vite build done", "outDir", opts.OutDir, "duration", time.Since(start))
	return nil
}

// Stop terminates a running dev server, if any.
func (c *Cmd) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Cmd) stopLocked() error {
	if c.cmd == nil || c.cmd.Process == nil || c.cmd.ProcessState != nil {
		return nil
	}
	pid := c.cmd.Process.Pid
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		if killErr := c.cmd.Process.Kill(); killErr != nil {
			return fmt.Errorf("viteutil: terminate vite process %d: %w", pid, killErr)
		}
	}

	done := make(chan struct{})
	go func() {
		c.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		c.cmd.Process.Kill()
		<-done
	}

	c.log.Info("terminated vite process", "pid", pid)
	c.cmd = nil
	return nil
}
