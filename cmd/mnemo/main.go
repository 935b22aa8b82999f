// Command mnemo runs the memory-augmented agent, either as an interactive
// chat shell or as a WebSocket server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/engine"
	"github.com/mnemolabs/mnemo/executor"
	"github.com/mnemolabs/mnemo/memory"
	"github.com/mnemolabs/mnemo/memory/embedder/mock"
	chromemstore "github.com/mnemolabs/mnemo/memory/store/chromem"
	"github.com/mnemolabs/mnemo/memory/store/sqlite"
	"github.com/mnemolabs/mnemo/reasoner"
	"github.com/mnemolabs/mnemo/server"
	"github.com/mnemolabs/mnemo/tools"
)

func main() {
	godotenv.Load()

	cmd := &cli.Command{
		Name:  "mnemo",
		Usage: "conversational agent with layered memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "path to the fact database",
				Value: "mnemo.db",
			},
			&cli.StringFlag{
				Name:  "workspace",
				Usage: "directory for agent file operations",
				Value: "workspace",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "reasoning model",
				Value: "claude-sonnet-4-5",
			},
			&cli.StringFlag{
				Name:  "executor",
				Usage: "tool executor: local, http, or grpc",
				Value: "local",
			},
			&cli.StringFlag{
				Name:  "executor-endpoint",
				Usage: "endpoint for the http/grpc executor",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "chat",
				Usage: "interactive chat shell",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "user id for memory scoping",
						Value: "default",
					},
				},
				Action: runChat,
			},
			{
				Name:  "serve",
				Usage: "run the WebSocket server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address",
						Value: ":8080",
					},
				},
				Action: runServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// deps holds the wired components a command needs.
type deps struct {
	engine   *engine.Engine
	facts    memory.FactStore
	episodes memory.EpisodeStore
	log      memory.ConversationLog
}

func buildDeps(cmd *cli.Command) (*deps, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	facts, err := sqlite.New(cmd.String("db"))
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}

	episodes, err := chromemstore.New(mock.New())
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}

	var exec core.ToolExecutor
	switch cmd.String("executor") {
	case "local":
		exec, err = executor.NewLocal(cmd.String("workspace"))
	case "http":
		exec, err = executor.NewHTTP(cmd.String("executor-endpoint"))
	case "grpc":
		exec, err = executor.NewGRPC(cmd.String("executor-endpoint"))
	default:
		err = fmt.Errorf("unknown executor %q", cmd.String("executor"))
	}
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry(tools.BuiltinDefinitions())
	if err != nil {
		return nil, err
	}
	gateway, err := tools.NewGateway(registry, exec)
	if err != nil {
		return nil, err
	}

	conversation := memory.NewLog()
	eng, err := engine.New(
		reasoner.New(reasoner.WithModel(cmd.String("model"))),
		gateway,
		engine.Memory{Facts: facts, Episodes: episodes, Log: conversation},
	)
	if err != nil {
		return nil, err
	}

	return &deps{engine: eng, facts: facts, episodes: episodes, log: conversation}, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	d, err := buildDeps(cmd)
	if err != nil {
		return err
	}
	defer d.facts.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(d.engine, server.WithAddr(cmd.String("addr"))).Run(ctx)
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	d, err := buildDeps(cmd)
	if err != nil {
		return err
	}
	defer d.facts.Close()

	userID := cmd.String("user")
	threadID := uuid.New().String()

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("mnemo chat. Type /help for commands, /quit to exit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, d, line, userID, &threadID)
			if err != nil {
				fmt.Println("error:", err)
			}
			if done {
				return nil
			}
			continue
		}

		out, err := d.engine.Run(ctx, &engine.Input{
			UserID:   userID,
			ThreadID: threadID,
			Message:  line,
		})
		if err != nil {
			log.Printf("turn failed: %v", err)
			if out != nil && out.Text != "" {
				fmt.Println("agent>", out.Text)
			}
			continue
		}

		for _, exec := range out.ToolsUsed {
			fmt.Printf("  [tool] %s\n", exec.Summary())
		}
		fmt.Println("agent>", out.Text)
	}
}

// handleCommand runs one slash command. It returns true when the shell
// should exit.
func handleCommand(ctx context.Context, d *deps, line, userID string, threadID *string) (bool, error) {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println(`Commands:
  /newthread    start a fresh thread (long-term memory is kept)
  /showmemory   print stored preferences, facts, and recent episodes
  /clearmemory  erase all memory for this user
  /quit         exit`)
		return false, nil

	case "/newthread":
		*threadID = uuid.New().String()
		fmt.Println("Started a new thread.")
		return false, nil

	case "/showmemory":
		return false, showMemory(ctx, d, userID)

	case "/clearmemory":
		if err := d.facts.Clear(ctx, userID); err != nil {
			return false, err
		}
		if err := d.episodes.Clear(ctx, userID); err != nil {
			return false, err
		}
		if err := d.log.Reset(ctx, *threadID); err != nil {
			return false, err
		}
		fmt.Println("Memory cleared.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q, try /help", line)
	}
}

func showMemory(ctx context.Context, d *deps, userID string) error {
	prefs, err := d.facts.Preferences(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Preferences (%d):\n", len(prefs))
	for k, v := range prefs {
		fmt.Printf("  %s = %s\n", k, v)
	}

	userFacts, err := d.facts.Facts(ctx, userID, 20)
	if err != nil {
		return err
	}
	fmt.Printf("Facts (%d):\n", len(userFacts))
	for _, f := range userFacts {
		fmt.Printf("  [%s] %s\n", f.FactType, f.Content)
	}

	episodes, err := d.episodes.Recent(ctx, userID, 5)
	if err != nil {
		return err
	}
	fmt.Printf("Recent episodes (%d):\n", len(episodes))
	for _, ep := range episodes {
		fmt.Printf("  %s\n", ep.Format(120))
	}
	return nil
}
