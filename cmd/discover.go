package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"mcpdiscover/internal/cli"
	"mcpdiscover/internal/config"
	"mcpdiscover/internal/orchestrator"
	"mcpdiscover/internal/probe"
)

type discoverFlags struct {
	image       string
	command     string
	backend     string
	transport   string
	execCommand string
	args        []string
	env         []string
	timeout     time.Duration
	output      string
	quiet       bool
}

// newDiscoverCmd creates the Cobra command for running a discovery attempt
// against a local command or a container image.
func newDiscoverCmd() *cobra.Command {
	flags := &discoverFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover tools from an MCP server command or image",
		Long: `Spawns an MCP server and lists the tools it exposes.

A local command is spoken to directly over stdio. A container image is
provisioned on the selected backend (docker or kubernetes), probed, and torn
down again. Exactly one of --command or --image must be given.`,
		Example: `  # Local command over stdio
  mcpdiscover discover --command "npx" --args "-y,@modelcontextprotocol/server-filesystem,/tmp"

  # Container image attached to stdio
  mcpdiscover discover --image ghcr.io/example/mcp-server:v1

  # Network-transport image on Kubernetes
  mcpdiscover discover --image ghcr.io/example/mcp-server:v1 --transport http --backend kubernetes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.image, "image", "", "container image to probe")
	cmd.Flags().StringVar(&flags.command, "command", "", "local MCP server command to probe")
	cmd.Flags().StringVar(&flags.backend, "backend", string(orchestrator.BackendDocker), "image backend (docker, kubernetes)")
	cmd.Flags().StringVar(&flags.transport, "transport", string(probe.TransportStdio), "how the containerized server is reached (stdio, http)")
	cmd.Flags().StringVar(&flags.execCommand, "exec-command", "", "server command to exec inside a detached container (stdio transport)")
	cmd.Flags().StringSliceVar(&flags.args, "args", nil, "arguments for the server command or image")
	cmd.Flags().StringSliceVar(&flags.env, "env", nil, "environment variables as KEY=VALUE")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "override the per-attempt discovery timeout")
	cmd.Flags().StringVarP(&flags.output, "output", "o", string(cli.FormatTable), "output format (table, json, yaml)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the spinner and summary line")

	return cmd
}

func runDiscover(cmd *cobra.Command, flags *discoverFlags) error {
	if (flags.image == "") == (flags.command == "") {
		return fmt.Errorf("exactly one of --image or --command must be given")
	}

	format, err := cli.ParseOutputFormat(flags.output)
	if err != nil {
		return err
	}

	env, err := parseEnvFlags(flags.env)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine := orchestrator.NewEngine(cfg.Discovery)
	engine.SetCommandProber(probe.NewCommandProbe(cfg.Discovery))

	var s *spinner.Spinner
	if !flags.quiet && format == cli.FormatTable {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Discovering tools..."
		s.Start()
	}
	stopSpinner := func() {
		if s != nil {
			s.Stop()
			s = nil
		}
	}
	defer stopSpinner()

	var result *probe.DiscoveryResult
	var what string

	if flags.command != "" {
		what = flags.command
		result = engine.DiscoverCommand(cmd.Context(), probe.CommandTarget{
			Command: flags.command,
			Args:    flags.args,
			Env:     env,
			Timeout: flags.timeout,
		})
	} else {
		what = flags.image
		backend, err := registerBackend(engine, flags.backend, cfg)
		if err != nil {
			stopSpinner()
			return err
		}
		result = engine.Discover(cmd.Context(), backend, probe.ImageTarget{
			Image:     flags.image,
			Args:      flags.args,
			Env:       env,
			Transport: probe.Transport(flags.transport),
			Command:   flags.execCommand,
			Timeout:   flags.timeout,
		})
	}
	stopSpinner()

	if result == nil {
		return &errNothingFound{what: what}
	}

	renderer := cli.NewRenderer(cmd.OutOrStdout(), cli.Options{
		Format: format,
		Quiet:  flags.quiet,
		Color:  isTerminal(),
	})
	return renderer.RenderResult(result)
}

// registerBackend wires the requested image backend into the engine. Backend
// construction is late so the docker daemon or kubeconfig is only required
// when actually used.
func registerBackend(engine *orchestrator.Engine, name string, cfg config.Config) (orchestrator.Backend, error) {
	switch orchestrator.Backend(strings.ToLower(name)) {
	case orchestrator.BackendDocker:
		prober, err := probe.NewDockerProbe(cfg)
		if err != nil {
			return "", err
		}
		engine.Register(orchestrator.BackendDocker, prober)
		return orchestrator.BackendDocker, nil
	case orchestrator.BackendKubernetes:
		prober, err := probe.NewKubernetesProbe(cfg)
		if err != nil {
			return "", err
		}
		engine.Register(orchestrator.BackendKubernetes, prober)
		return orchestrator.BackendKubernetes, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want docker or kubernetes)", name)
	}
}

func parseEnvFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env entry %q (want KEY=VALUE)", entry)
		}
		env[key] = value
	}
	return env, nil
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
