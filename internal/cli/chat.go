package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
)

// maxChatTurns bounds the history sent with each question
const maxChatTurns = 20

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the security assistant",
	Long: `Ask the security assistant a question. With an argument a single answer
is printed; without one questions are read from stdin, one per line, and the
conversation is kept until EOF or "exit".`,
	Args: cobra.ArbitraryArgs,
	RunE: chatCommand,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func chatCommand(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.adapters.Advisor.IsConfigured() {
		return fmt.Errorf("the assistant needs an advisor provider and API key")
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		reply, err := e.adapters.Advisor.Chat(cmd.Context(), nil, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("assistant failed: %w", err)
		}
		return emit(out, reply, func(w io.Writer) {
			fmt.Fprintln(w, reply.Reply)
		})
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return chatLoop(cmd.Context(), e.adapters.Advisor, cmd.InOrStdin(), out, interactive)
}

// chatLoop answers one question per input line, carrying the conversation
func chatLoop(ctx context.Context, assistant services.ChatAssistant, in io.Reader, out io.Writer, prompt bool) error {
	var history []models.ChatMessage
	scanner := bufio.NewScanner(in)

	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		reply, err := assistant.Chat(ctx, history, question)
		if err != nil {
			fmt.Fprintf(out, "assistant error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Reply)

		history = append(history,
			models.ChatMessage{Role: "user", Content: question},
			models.ChatMessage{Role: "assistant", Content: reply.Reply},
		)
		if len(history) > maxChatTurns {
			history = history[len(history)-maxChatTurns:]
		}
	}
}
