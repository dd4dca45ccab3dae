package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// Root runs the sharectl REPL until the user types exit/quit or closes
// stdin.
func (a *App) Root(ctx context.Context) {
	log.Println("sharectl (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("sharectl> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Available commands: note, file <path>, get <id> <key>, download <id> <key> <dest> [--reveal-filename], list, delete <id>, exit")
		case "note":
			a.shareNote(ctx)
		case "file":
			if len(args) == 0 {
				fmt.Println("Usage: file <path>")
				continue
			}
			a.shareFile(ctx, args[0])
		case "get":
			if len(args) < 2 {
				fmt.Println("Usage: get <id> <key>")
				continue
			}
			a.getNote(ctx, args[0], args[1])
		case "download":
			if len(args) < 3 {
				fmt.Println("Usage: download <id> <key> <dest> [--reveal-filename]")
				continue
			}
			reveal := len(args) >= 4 && args[3] == "--reveal-filename"
			a.downloadFile(ctx, args[0], args[1], args[2], reveal)
		case "list":
			a.listHistory(ctx)
		case "delete":
			if len(args) == 0 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			a.deleteHistory(ctx, args[0])
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
