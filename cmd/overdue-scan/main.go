package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/workflow"
)

// Scheduled job (Cloud Scheduler / cron) that detects orders past their
// forecast date. By default it only publishes events; -mark also transitions
// the orders to Overdue.
func main() {
	mark := flag.Bool("mark", false, "Transition detected orders to Overdue instead of only publishing events")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	result, err := workflow.ScanOverdueOrders(context.Background(), *mark)
	if err != nil {
		fmt.Fprintf(os.Stderr, "overdue scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scanned=%d published=%d marked=%d\n", result.Scanned, result.Published, result.Marked)
}
