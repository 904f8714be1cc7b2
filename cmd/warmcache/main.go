// Command warmcache demonstrates and load-tests the predictive cache.
package main

import (
	"context"
	"fmt"
	"os"

	mylog "github.com/krisalay/warmcache/internal/log"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	ctx := context.Background()
	args := os.Args
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	}

	app := InitApp()
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
