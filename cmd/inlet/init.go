package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/inletd/inlet/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "inlet.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			var (
				listen     = "127.0.0.1:8080"
				forwardURL string
				adminToken string
				mode       = "queue"
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Listen address").
						Description("host:port the gateway binds to").
						Value(&listen).
						Validate(func(s string) error {
							_, _, err := net.SplitHostPort(s)
							return err
						}),
					huh.NewInput().
						Title("Forward URL").
						Description("Base URL of the agent runner that executes batches").
						Placeholder("http://127.0.0.1:9000").
						Value(&forwardURL).
						Validate(validateForwardURL),
					huh.NewInput().
						Title("Admin token").
						Description("Leave empty to disable the admin API").
						EchoMode(huh.EchoModePassword).
						Value(&adminToken),
					huh.NewSelect[string]().
						Title("Queue mode").
						Description("What happens to messages that arrive during a run").
						Options(
							huh.NewOption("queue (buffer until the run completes)", "queue"),
							huh.NewOption("steer (inject into the active run)", "steer"),
							huh.NewOption("followup (buffer and flush right after)", "followup"),
							huh.NewOption("collect (buffer until flushed by hand)", "collect"),
							huh.NewOption("steer-backlog (steer, keeping a backlog)", "steer-backlog"),
							huh.NewOption("interrupt (cancel the run and restart)", "interrupt"),
						).
						Value(&mode),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			content := renderConfig(listen, forwardURL, adminToken, mode)
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			// Read it back through the real loader as a sanity check.
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Start the gateway with: inlet start --config " + path)
			return nil
		},
	}
}

func validateForwardURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func renderConfig(listen, forwardURL, adminToken, mode string) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  listen: %q\n", listen)
	if adminToken != "" {
		fmt.Fprintf(&b, "  admin_token: %q\n", adminToken)
	}
	b.WriteString("\n")

	b.WriteString("queue:\n")
	fmt.Fprintf(&b, "  mode: %s\n", mode)
	b.WriteString("  drop_policy: summarize\n")
	b.WriteString("  debounce: 1s\n")
	b.WriteString("  cap: 20\n\n")

	b.WriteString("forward:\n")
	fmt.Fprintf(&b, "  base_url: %q\n", forwardURL)
	return b.String()
}
