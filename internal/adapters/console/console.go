// Package console is the typed fallback for the voice flow: a REPL that
// routes plain Hinglish lines through the classifier and dispatcher, with
// slash commands for the deterministic lookups a shopkeeper wants at a
// glance.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/conversation"
	"kirana-voice/internal/core"
	"kirana-voice/internal/engine"
)

// Executor dispatches one classified task; *engine.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req engine.Request) engine.Result
}

// Renderer phrases a result; *respond.Templater satisfies it.
type Renderer interface {
	Render(ctx context.Context, utterance string, res engine.Result) string
}

// ConversationLog is the slice of conversation.Store the console needs.
type ConversationLog interface {
	FormatContextPrompt(ctx context.Context, sessionID string, n int) (string, error)
	AppendUserMessage(ctx context.Context, sessionID, text, intent string, entities map[string]any) (*conversation.SessionMemory, error)
	AppendAssistantMessage(ctx context.Context, sessionID, text string) error
}

type Deps struct {
	Engine     Executor
	Classifier ai.Classifier
	Renderer   Renderer
	Conv       ConversationLog

	Customers core.CustomerService
	Products  core.ProductService
	Reminders core.ReminderService
	Summary   core.SummaryService

	ShopName string
	Location *time.Location
	Log      zerolog.Logger
}

var errExit = errors.New("exit")

// Run starts the interactive loop. It reads lines from reader, dispatches
// slash commands deterministically, and routes everything else through the
// intent classifier as if it had been spoken.
func Run(ctx context.Context, deps Deps, reader *bufio.Reader) {
	sessionID := "console-" + uuid.NewString()

	fmt.Printf("%s — voice back-office (typed mode)\n", deps.ShopName)
	fmt.Println("Hinglish mein likho (\"sharma ji ka kitna baki hai\"), ya /help for commands.")
	fmt.Println(strings.Repeat("-", 70))

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Slash prefix means a deterministic lookup, no classifier invoked.
		if strings.HasPrefix(input, "/") {
			if err := dispatchSlash(ctx, deps, input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Println("Namaste!")
					return
				}
				fmt.Printf("Error: %v\n", err)
			}
			continue
		}

		runUtterance(ctx, deps, sessionID, input)
	}
}

// RunOnce handles a single utterance and returns — the scripting path
// (`kirana say "..."`). Each invocation is its own session.
func RunOnce(ctx context.Context, deps Deps, utterance string) {
	runUtterance(ctx, deps, "oneshot-"+uuid.NewString(), utterance)
}

func runUtterance(ctx context.Context, deps Deps, sessionID, input string) {
	prompt, err := deps.Conv.FormatContextPrompt(ctx, sessionID, 6)
	if err != nil {
		deps.Log.Error().Err(err).Msg("failed to load conversation context")
	}

	cls, err := deps.Classifier.Classify(ctx, input, prompt)
	if err != nil {
		deps.Log.Error().Err(err).Msg("classification failed")
		fmt.Println("Samajh nahi aaya. Phir se try karo.")
		return
	}

	for _, task := range cls.Tasks {
		utterance := strings.TrimSpace(task.Utterance)
		if utterance == "" {
			utterance = input
		}
		if _, err := deps.Conv.AppendUserMessage(ctx, sessionID, utterance, task.Intent, task.Entities.AsMap()); err != nil {
			deps.Log.Error().Err(err).Msg("failed to record user turn")
		}

		res := deps.Engine.Execute(ctx, engine.Request{
			SessionID:    sessionID,
			Intent:       task.Intent,
			Utterance:    utterance,
			Entities:     task.Entities,
			OperatorRole: "admin",
		})
		text := deps.Renderer.Render(ctx, utterance, res)
		if err := deps.Conv.AppendAssistantMessage(ctx, sessionID, text); err != nil {
			deps.Log.Error().Err(err).Msg("failed to record assistant turn")
		}

		if len(cls.Tasks) > 1 {
			fmt.Printf("\n[%s] %s\n", task.Intent, text)
		} else {
			fmt.Printf("\n%s\n", text)
		}
	}
}

func dispatchSlash(ctx context.Context, deps Deps, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "udhaar", "pending", "bal":
		total, count, err := deps.Customers.TotalPending(ctx)
		if err != nil {
			return err
		}
		balances, err := deps.Customers.ListBalances(ctx)
		if err != nil {
			return err
		}
		printBalances(balances, total, count)

	case "customers", "c":
		if len(args) == 0 {
			fmt.Println("Usage: /customers <naam ya phone>")
			return nil
		}
		matches, err := deps.Customers.SearchCustomer(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printCustomers(matches)

	case "stock", "s":
		products, err := deps.Products.ListProducts(ctx)
		if err != nil {
			return err
		}
		printStock(products, "STOCK")

	case "low":
		products, err := deps.Products.LowStock(ctx)
		if err != nil {
			return err
		}
		printStock(products, "LOW STOCK")

	case "reminders", "r":
		reminders, err := deps.Reminders.ListReminders(ctx, 0, core.ReminderScheduled)
		if err != nil {
			return err
		}
		printReminders(reminders, deps.Location)

	case "summary":
		day := time.Now().In(deps.Location)
		if len(args) > 0 {
			parsed, err := time.ParseInLocation("2006-01-02", args[0], deps.Location)
			if err != nil {
				fmt.Printf("Invalid date: %s (want YYYY-MM-DD)\n", args[0])
				return nil
			}
			day = parsed
		}
		summary, err := deps.Summary.DailySummary(ctx, day)
		if err != nil {
			return err
		}
		printSummary(summary)

	case "help", "h":
		printHelp()

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Printf("Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}
