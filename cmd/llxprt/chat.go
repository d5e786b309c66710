package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/runtimectx"
)

var (
	chatProvider    string
	chatModel       string
	chatTemperature float64
	chatMaxTokens   int
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one chat completion to the active (or named) provider and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "provider to use instead of the currently active one")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model override")
	chatCmd.Flags().Float64Var(&chatTemperature, "temperature", 0, "sampling temperature (0 = provider default)")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 0, "max output tokens (0 = provider default)")
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatProvider != "" {
		if err := mgr.SetActiveProvider(chatProvider); err != nil {
			return err
		}
	}

	active, err := mgr.GetActiveProvider()
	if err != nil {
		return err
	}

	runtime, err := mgr.SnapshotRuntimeContext("cli", "llxprt-cli", time.Now().Unix())
	if err != nil {
		return err
	}

	var params runtimectx.ModelParams
	if chatTemperature != 0 {
		params.Temperature = &chatTemperature
	}
	if chatMaxTokens != 0 {
		params.MaxTokens = &chatMaxTokens
	}

	memory, _ := config.GetUserMemory()

	opts := runtimectx.NormalizedGenerateChatOptions{
		Contents:   []content.IContent{content.TextOnly(content.SpeakerHuman, args[0])},
		Settings:   runtimectx.Snapshot(settings, config, active.Name()),
		Runtime:    runtime,
		Resolved:   runtimectx.ResolvedCallParams{Model: chatModel, ModelParams: params},
		UserMemory: memory,
	}

	stream, err := mgr.Dispatch(context.Background(), "cli", opts)
	if err != nil {
		return err
	}

	for item := range stream {
		if item.Err != nil {
			return item.Err
		}
		if item.Content == nil {
			continue
		}
		for _, block := range item.Content.Blocks {
			switch b := block.(type) {
			case content.TextBlock:
				fmt.Print(b.Text)
			case content.ToolCallBlock:
				fmt.Printf("\n[tool call] %s(%v)\n", b.Name, b.Parameters)
			}
		}
		if item.Content.Metadata != nil && item.Content.Metadata.Usage != nil {
			u := item.Content.Metadata.Usage
			fmt.Printf("\n[usage] prompt=%d completion=%d total=%d\n", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
		}
	}
	fmt.Println()
	return nil
}
