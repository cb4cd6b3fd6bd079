package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. The real App type
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	StartLocal(ctx context.Context) error
	Promote(ctx context.Context) error
	Catch(ctx context.Context, args []string) error
	CatchMany(ctx context.Context, args []string) error
	Release(ctx context.Context, args []string) error
	Note(ctx context.Context, args []string) error
	Fav(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Dex(ctx context.Context, args []string) error
	Find(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

const helpLoggedOut = "Available commands: register, login, local, status, exit"
const helpLoggedIn = "Available commands: catch <id> [note], catchmany <id...>, release <id>, " +
	"note <id>, fav <id>, list, dex [page], find <name>, stats, sync, promote, status, logout, exit"

// runREPL reads a line, parses the first token as the command, and
// dispatches to methods on a. It exits on scanner EOF or "exit"/"quit".
// Handler errors are printed and the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn("catchdex " + statusFn() + "> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "local":
			err = a.StartLocal(ctx)
		case "promote":
			err = a.Promote(ctx)
		case "catch":
			err = a.Catch(ctx, args)
		case "catchmany":
			err = a.CatchMany(ctx, args)
		case "release":
			err = a.Release(ctx, args)
		case "note":
			err = a.Note(ctx, args)
		case "fav":
			err = a.Fav(ctx, args)
		case "l", "list":
			err = a.List(ctx)
		case "dex":
			err = a.Dex(ctx, args)
		case "find":
			err = a.Find(ctx, args)
		case "stats":
			err = a.Stats(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "status":
			err = a.Status(ctx)
		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err.Error())
		}
	}
}
