package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Refresh(ctx context.Context) error
	Status(ctx context.Context) error
	Call(ctx context.Context, number string) error
	Hangup(ctx context.Context, id string) error
	Calls(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF or on "exit"/"quit".
//
//	Not logged in:  help, login, status, exit
//	Logged in:      help, status, lock, unlock, refresh, call <number>,
//	                hangup <id>, calls, logout, exit
//
// Errors returned by handlers are not printed here; handlers report their
// own failures.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("dk %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, lock, unlock, refresh, call <number>, hangup <id>, calls, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "lock":
			_ = a.Lock(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "status":
			_ = a.Status(ctx)

		case "call":
			if len(args) == 0 {
				printlnFn("Usage: call <number>")
				continue
			}
			_ = a.Call(ctx, args[0])

		case "hangup":
			if len(args) == 0 {
				printlnFn("Usage: hangup <id>")
				continue
			}
			_ = a.Hangup(ctx, args[0])

		case "calls":
			_ = a.Calls(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
