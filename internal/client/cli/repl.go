package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests use a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Attach(ctx context.Context, id, path string) error
	Detach(ctx context.Context, id string) error
	SyncNow(ctx context.Context) error
	Status(ctx context.Context) error
	Conflicts(ctx context.Context) error
	Resolve(ctx context.Context, id, strategy string) error
	Retry(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

const loggedInHelp = "Available commands: add, (l)ist, show <id>, delete <id>, attach <id> <path>, detach <id>, sync, pause, resume, retry, conflicts, resolve <id> <keepLocal|keepRemote|merge>, status, logout, exit"
const loggedOutHelp = "Available commands: register, login, exit"

// runREPL reads commands line by line and dispatches them. It exits on EOF,
// "exit"/"quit", or when ctx is cancelled. Handlers report their own errors;
// the loop only keeps reading.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("papersync %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				printlnFn(loggedOutHelp)
			case "register":
				_ = a.Register(ctx)
			case "login":
				_ = a.Login(ctx)
			case "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "help":
			printlnFn(loggedInHelp)
		case "add":
			_ = a.Add(ctx)
		case "l", "list":
			_ = a.List(ctx)
		case "show":
			if len(args) != 1 {
				printlnFn("Usage: show <id>")
				continue
			}
			_ = a.Show(ctx, args[0])
		case "delete":
			if len(args) != 1 {
				printlnFn("Usage: delete <id>")
				continue
			}
			_ = a.Delete(ctx, args[0])
		case "attach":
			if len(args) != 2 {
				printlnFn("Usage: attach <id> <path>")
				continue
			}
			_ = a.Attach(ctx, args[0], args[1])
		case "detach":
			if len(args) != 1 {
				printlnFn("Usage: detach <id>")
				continue
			}
			_ = a.Detach(ctx, args[0])
		case "sync":
			_ = a.SyncNow(ctx)
		case "pause":
			_ = a.Pause(ctx)
		case "resume":
			_ = a.Resume(ctx)
		case "retry":
			_ = a.Retry(ctx)
		case "conflicts":
			_ = a.Conflicts(ctx)
		case "resolve":
			if len(args) != 2 {
				printlnFn("Usage: resolve <id> <keepLocal|keepRemote|merge>")
				continue
			}
			_ = a.Resolve(ctx, args[0], args[1])
		case "status":
			_ = a.Status(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
