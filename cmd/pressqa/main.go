// Command pressqa answers questions about Deutsche Telekom press releases.
// It scrapes the press-release feed, indexes the articles in a vector store,
// and answers questions from the retrieved passages, from the command line or
// over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/pressqa-go/cmd/pressqa/commands"
	"github.com/54b3r/pressqa-go/internal/embedder"
)

func main() {
	err := commands.NewRootCmd().Execute()
	_ = embedder.CloseShared()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
