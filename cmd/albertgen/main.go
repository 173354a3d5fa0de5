// albertgen generates ALBERT pretraining examples from text files.
//
// Usage:
//
//	albertgen generate --config=albert.yaml corpus/*.txt
//	albertgen inspect examples-<run id>-00000.parquet
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"k8s.io/klog/v2"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewCLI().ExecuteContext(ctx)
	stop()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
