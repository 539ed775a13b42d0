// Command pptxslim shrinks PowerPoint files: it removes hidden slides and
// unused layouts, masters and media, then recompresses images.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pptxslim: %v\n", err)
		stop()
		os.Exit(1)
	}
}
