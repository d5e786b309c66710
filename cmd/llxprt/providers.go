package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect registered providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered provider and its capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := mgr.ListProviders()
		sort.Strings(names)
		for _, name := range names {
			caps, err := mgr.GetProviderCapabilities(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s streaming=%-5v tools=%-5v vision=%-5v maxTokens=%d\n",
				name, caps.SupportsStreaming, caps.SupportsTools, caps.SupportsVision, caps.MaxTokens)
		}
		return nil
	},
}

var providersModelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List the models a provider offers (active provider if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		models, err := mgr.GetAvailableModels(name)
		if err != nil {
			return err
		}
		for _, model := range models {
			fmt.Printf("%-20s %-24s context=%d\n", model.ID, model.Name, model.ContextWindow)
		}
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersModelsCmd)
}
