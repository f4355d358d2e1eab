package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mcpdiscover/internal/cli"
	"mcpdiscover/internal/config"
	"mcpdiscover/internal/orchestrator"
	"mcpdiscover/internal/probe"
)

type batchFlags struct {
	file   string
	output string
	quiet  bool
}

// batchManifest is the YAML file format for a batch run: a list of named
// image targets, each with an optional backend.
type batchManifest struct {
	Servers []batchServer `yaml:"servers"`
}

type batchServer struct {
	Name      string            `yaml:"name"`
	Image     string            `yaml:"image"`
	Backend   string            `yaml:"backend"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Timeout   config.Duration   `yaml:"timeout"`
}

// newBatchCmd creates the Cobra command for discovering tools from several
// images in one run.
func newBatchCmd() *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Discover tools from a manifest of MCP server images",
		Long: `Reads a YAML manifest of named container images, probes them
concurrently, and reports one row per server. A server that fails every
attempt is reported as failed without affecting the others.`,
		Example: `  mcpdiscover batch -f servers.yaml

  # servers.yaml
  servers:
    - name: filesystem
      image: ghcr.io/example/mcp-fs:v1
    - name: search
      image: ghcr.io/example/mcp-search:v2
      backend: kubernetes
      transport: http`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "path to the server manifest (required)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", string(cli.FormatTable), "output format (table, json, yaml)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the spinner")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runBatch(cmd *cobra.Command, flags *batchFlags) error {
	format, err := cli.ParseOutputFormat(flags.output)
	if err != nil {
		return err
	}

	manifest, err := loadBatchManifest(flags.file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine := orchestrator.NewEngine(cfg.Discovery)
	registered := make(map[string]orchestrator.Backend)
	items := make([]orchestrator.BatchItem, 0, len(manifest.Servers))
	for _, server := range manifest.Servers {
		backendName := server.Backend
		if backendName == "" {
			backendName = string(orchestrator.BackendDocker)
		}
		backend, ok := registered[backendName]
		if !ok {
			var err error
			backend, err = registerBackend(engine, backendName, cfg)
			if err != nil {
				return fmt.Errorf("server %q: %w", server.Name, err)
			}
			registered[backendName] = backend
		}

		transport := probe.Transport(server.Transport)
		if transport == "" {
			transport = probe.TransportStdio
		}
		items = append(items, orchestrator.BatchItem{
			Name:    server.Name,
			Backend: backend,
			Target: probe.ImageTarget{
				Image:     server.Image,
				Args:      server.Args,
				Env:       server.Env,
				Transport: transport,
				Command:   server.Command,
				Timeout:   server.Timeout.D(),
			},
		})
	}

	var s *spinner.Spinner
	if !flags.quiet && format == cli.FormatTable {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Discovering tools from %d servers...", len(items))
		s.Start()
	}

	results, err := engine.DiscoverAll(cmd.Context(), items)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	renderer := cli.NewRenderer(cmd.OutOrStdout(), cli.Options{
		Format: format,
		Quiet:  flags.quiet,
		Color:  isTerminal(),
	})
	if err := renderer.RenderBatch(results); err != nil {
		return err
	}

	if allFailed(results) {
		return &errNothingFound{what: fmt.Sprintf("any of the %d listed servers", len(results))}
	}
	return nil
}

// loadBatchManifest reads and validates a server manifest.
func loadBatchManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifest batchManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(manifest.Servers) == 0 {
		return nil, fmt.Errorf("manifest %s lists no servers", path)
	}

	seen := make(map[string]bool, len(manifest.Servers))
	for i, server := range manifest.Servers {
		if server.Name == "" {
			return nil, fmt.Errorf("manifest %s: server %d has no name", path, i+1)
		}
		if server.Image == "" {
			return nil, fmt.Errorf("manifest %s: server %q has no image", path, server.Name)
		}
		if seen[server.Name] {
			return nil, fmt.Errorf("manifest %s: duplicate server name %q", path, server.Name)
		}
		seen[server.Name] = true
	}
	return &manifest, nil
}

func allFailed(results []orchestrator.BatchResult) bool {
	for _, result := range results {
		if result.Result != nil {
			return false
		}
	}
	return true
}
