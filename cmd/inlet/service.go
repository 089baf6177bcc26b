package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/inletd/inlet/pkg/app"
)

// program adapts app.Run to the service manager's lifecycle.
type program struct {
	params app.RunParams
}

// Start implements service.Interface. The service manager expects Start to
// return promptly, so the blocking loop runs in its own goroutine.
func (p *program) Start(_ service.Service) error {
	go func() {
		if err := app.Run(p.params); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}()
	return nil
}

// Stop implements service.Interface. The pipeline shuts itself down on the
// manager's stop signal, so there is nothing left to do here.
func (p *program) Stop(_ service.Service) error {
	return nil
}

func newService(cfgPath string) (service.Service, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	prg := &program{params: app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}}

	return service.New(prg, &service.Config{
		Name:        "inlet",
		DisplayName: "inlet",
		Description: "Message intake and queueing gateway for chat agents",
		Arguments:   args,
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage inlet as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	cmd.AddCommand(
		serviceControlCmd("install", "Install inlet as a system service"),
		serviceControlCmd("uninstall", "Remove the system service"),
		serviceControlCmd("start", "Start the installed service"),
		serviceControlCmd("stop", "Stop the installed service"),
		serviceControlCmd("restart", "Restart the installed service"),
		serviceRunCmd(),
	)
	return cmd
}

func serviceControlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("service %s: done\n", action)
			return nil
		},
	}
}

func serviceRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}
