// stock-rebuild recomputes the stock summary rows for a mill from its
// transaction ledger. Run it after manual data fixes or a bad migration.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/graintrack/mill_backend/appctx"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
)

func main() {
	millId := flag.String("mill", os.Getenv("MILL_ID"), "mill id to rebuild (required)")
	flag.Parse()

	if *millId == "" {
		log.Fatal("usage: stock-rebuild -mill <mill-id>")
	}

	config.ConnectDatabaseWithRetry()

	ctx := appctx.Set(context.Background(), appctx.ContextKeyMillId, *millId)

	if _, err := models.GetMillById(ctx, *millId); err != nil {
		log.Fatalf("mill %s: %v", *millId, err)
	}

	if err := models.RebuildStockSummaries(ctx, *millId); err != nil {
		log.Fatalf("rebuild failed for mill %s: %v", *millId, err)
	}

	log.Printf("stock summaries rebuilt for mill %s", *millId)
}
