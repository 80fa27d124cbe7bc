// Command cairn is the CLI entry point: argv parsing, fixed user-facing
// messages, and exit codes.
package main

import (
	"fmt"
	"os"

	"github.com/cairn-vcs/cairn/internal/repo"
)

// operandCounts gives the exact number of operands every command except
// "checkout" expects; checkout's shape depends on which of its three
// forms is used and is validated separately.
var operandCounts = map[string]int{
	"init":        0,
	"add":         1,
	"commit":      1,
	"rm":          1,
	"log":         0,
	"global-log":  0,
	"find":        1,
	"status":      0,
	"branch":      1,
	"rm-branch":   1,
	"reset":       1,
	"merge":       1,
	"add-remote":  2,
	"rm-remote":   1,
	"push":        2,
	"fetch":       2,
	"pull":        2,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Please enter a command.")
		return
	}
	cmd := os.Args[1]
	operands := os.Args[2:]

	if _, known := operandCounts[cmd]; !known && cmd != "checkout" {
		fmt.Println("No command with that name exists.")
		return
	}

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cairn: %v\n", err)
		os.Exit(1)
	}

	if cmd == "init" {
		if repo.Exists(root) {
			fmt.Println("A Gitlet version-control system already exists in the current directory.")
			return
		}
		if len(operands) != 0 {
			fmt.Println("Incorrect operands.")
			return
		}
		if _, err := repo.Init(root); err != nil {
			fmt.Fprintf(os.Stderr, "cairn: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !repo.Exists(root) {
		fmt.Println("Not in an initialized Gitlet directory.")
		return
	}

	if cmd == "checkout" {
		if !validCheckoutShape(operands) {
			fmt.Println("Incorrect operands.")
			return
		}
	} else if want := operandCounts[cmd]; len(operands) != want {
		fmt.Println("Incorrect operands.")
		return
	}

	r, err := repo.Open(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cairn: %v\n", err)
		os.Exit(1)
	}

	output, err := dispatch(r, cmd, operands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cairn: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(output)

	if err := r.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "cairn: %v\n", err)
		os.Exit(1)
	}
}

// validCheckoutShape accepts the three checkout forms:
// "checkout -- <file>", "checkout <commitId> -- <file>", and
// "checkout <branch>".
func validCheckoutShape(operands []string) bool {
	switch len(operands) {
	case 1:
		return true
	case 2:
		return operands[0] == "--"
	case 3:
		return operands[1] == "--"
	default:
		return false
	}
}

func dispatch(r *repo.Repository, cmd string, operands []string) (string, error) {
	switch cmd {
	case "add":
		return r.Add(operands[0])
	case "commit":
		return r.Commit(operands[0])
	case "rm":
		return r.Remove(operands[0])
	case "log":
		return r.Log()
	case "global-log":
		return r.GlobalLog()
	case "find":
		return r.Find(operands[0])
	case "status":
		return r.Status()
	case "checkout":
		return dispatchCheckout(r, operands)
	case "branch":
		return r.Branch(operands[0])
	case "rm-branch":
		return r.RemoveBranch(operands[0])
	case "reset":
		return r.Reset(operands[0])
	case "merge":
		return r.MergeBranch(operands[0])
	case "add-remote":
		return r.AddRemote(operands[0], operands[1])
	case "rm-remote":
		return r.RemoveRemote(operands[0])
	case "push":
		return r.Push(operands[0], operands[1])
	case "fetch":
		return r.Fetch(operands[0], operands[1])
	case "pull":
		return r.Pull(operands[0], operands[1])
	default:
		return "", fmt.Errorf("unhandled command %q", cmd)
	}
}

func dispatchCheckout(r *repo.Repository, operands []string) (string, error) {
	switch len(operands) {
	case 1:
		return r.CheckoutBranch(operands[0])
	case 2:
		return r.CheckoutFile(operands[1])
	case 3:
		return r.CheckoutCommitFile(operands[0], operands[2])
	default:
		return "", fmt.Errorf("unreachable checkout shape")
	}
}
