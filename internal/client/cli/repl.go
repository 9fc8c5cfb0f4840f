package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Categories(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = "Available commands: (l)ist [page] [filter], show <id>, add, edit <id>, delete <id>, sync [--retry], categories, status, exit"

// runREPL starts a simple read–eval–print loop for the catalog CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Interactive commands keep reading their
// answers from the same reader. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("pk %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "add":
			cmdErr = a.Add(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)
		case "categories":
			cmdErr = a.Categories(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr.Error())
		}
	}
}
