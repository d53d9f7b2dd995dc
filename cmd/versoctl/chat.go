package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verso-labs/versobot/internal/bootstrap"
	"github.com/verso-labs/versobot/providers"
)

func newChatCmd() *cobra.Command {
	var configPath string
	var history []string
	var topK int

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the agent and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if topK > 0 {
				cfg.TopK = topK
			}
			agent, err := bootstrap.Agent(cfg)
			if err != nil {
				return err
			}

			// History entries are "role:content"; bare entries default
			// to the user role.
			msgs := make([]providers.Message, 0, len(history))
			for _, h := range history {
				role, content, found := strings.Cut(h, ":")
				if !found {
					role, content = providers.RoleUser, h
				}
				msgs = append(msgs, providers.Message{Role: role, Content: strings.TrimSpace(content)})
			}

			reply := agent.Respond(context.Background(), args[0], msgs)
			fmt.Println(reply.Text)
			if reply.Cached {
				fmt.Fprintf(cmd.ErrOrStderr(), "(cached, %s)\n", reply.Elapsed)
			}

			agent.FlushPending(context.Background())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringArrayVar(&history, "history", nil, `prior turns as "role:content" (repeatable)`)
	cmd.Flags().IntVar(&topK, "topk", 0, "override the number of retrieved exemplars")
	return cmd
}
