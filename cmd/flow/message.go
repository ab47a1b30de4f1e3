package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/mailbox"
	"github.com/spf13/cobra"
)

func newMessageCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Mailbox commands",
	}
	cmd.AddCommand(newMessageSendCmd(g))
	return cmd
}

func newMessageSendCmd(g *globalOpts) *cobra.Command {
	var (
		from          string
		to            string
		msgType       string
		content       string
		query         string
		angle         string
		prompt        string
		correlationID string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Enqueue a message for a drone",
		Long: "Enqueues a message. Task messages can be built from --query, --angle and\n" +
			"--prompt; --content sends a raw body instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := content
			if body == "" {
				if msgType != mailbox.TypeTask {
					return fmt.Errorf("--content is required for %s messages", msgType)
				}
				if query == "" && prompt == "" {
					return fmt.Errorf("one of --content, --query or --prompt is required")
				}
				var err error
				body, err = drone.EncodeTask(drone.Task{Query: query, Angle: angle, Prompt: prompt})
				if err != nil {
					return err
				}
			}

			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			msg, err := mailbox.New(a.db).Enqueue(cmd.Context(), from, to, msgType, body,
				mailbox.SendOpts{CorrelationID: correlationID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d to %s\n", msg.ID, to)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "cli", "sender ID")
	cmd.Flags().StringVar(&to, "to", "", "recipient drone ID, e.g. researcher-1 (required)")
	cmd.Flags().StringVar(&msgType, "type", mailbox.TypeTask, "message type (task, result, error)")
	cmd.Flags().StringVar(&content, "content", "", "raw message body")
	cmd.Flags().StringVar(&query, "query", "", "task query")
	cmd.Flags().StringVar(&angle, "angle", "", "research angle")
	cmd.Flags().StringVar(&prompt, "prompt", "", "free-form prompt for worker drones")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation ID echoed on the reply")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newInboxCmd(g *globalOpts) *cobra.Command {
	var agent string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List pending messages for a recipient",
		Long:  "Lists unprocessed messages addressed to a drone or sender, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			msgs, err := mailbox.New(a.db).FetchPending(cmd.Context(), agent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No messages for %s\n", agent)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFROM\tTYPE\tCORRELATION\tCREATED\tCONTENT")
			for _, m := range msgs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					m.ID, m.SenderID, m.Type, m.CorrelationID,
					m.CreatedAt.Format("2006-01-02 15:04"), truncate(m.Content, 60))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "recipient ID to check (required)")
	cmd.MarkFlagRequired("agent")
	return cmd
}
