package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/llxprt/core/profile"
)

var (
	profileProvider    string
	profileModel       string
	profileTemperature float64
	profileBaseURL     string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage persisted provider profiles",
}

var profileSaveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Save the current provider/model/settings as a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override := profile.Profile{
			Provider:          profileProvider,
			Model:             profileModel,
			EphemeralSettings: map[string]any{},
		}
		if profileTemperature != 0 {
			t := profileTemperature
			override.ModelParams.Temperature = &t
		}
		if profileBaseURL != "" {
			override.EphemeralSettings["base-url"] = profileBaseURL
		}

		p := override
		if existing, err := profileStor.Load(args[0]); err == nil {
			if !cmd.Flags().Changed("provider") {
				override.Provider = ""
			}
			merged, err := profile.Merge(existing, override)
			if err != nil {
				return err
			}
			p = merged
		}

		if err := profileStor.Save(args[0], p); err != nil {
			return err
		}
		fmt.Printf("saved profile %q\n", args[0])
		return nil
	},
}

var profileLoadCmd = &cobra.Command{
	Use:   "load [name]",
	Short: "Print a persisted profile's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profileStor.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("provider: %s\n", p.Provider)
		fmt.Printf("model:    %s\n", p.Model)
		if p.ModelParams.Temperature != nil {
			fmt.Printf("temperature: %v\n", *p.ModelParams.Temperature)
		}
		for k, v := range p.EphemeralSettings {
			fmt.Printf("ephemeral[%s]: %v\n", k, v)
		}
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profile names",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profileStor.List()
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profileStor.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted profile %q\n", args[0])
		return nil
	},
}

func init() {
	profileSaveCmd.Flags().StringVar(&profileProvider, "provider", "openai", "provider name to persist")
	profileSaveCmd.Flags().StringVar(&profileModel, "model", "", "model to persist")
	profileSaveCmd.Flags().Float64Var(&profileTemperature, "temperature", 0, "temperature to persist")
	profileSaveCmd.Flags().StringVar(&profileBaseURL, "base-url", "", "base URL ephemeral override to persist")

	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileLoadCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
