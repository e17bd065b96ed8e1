package main

import (
	"context"
	"fmt"
	"log"

	"github.com/david/cityguide/internal/db"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx, "")
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var total, featured, withTime, undated int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE is_featured),
			count(time),
			count(*) FILTER (WHERE btrim(date) = '')
		FROM events
	`).Scan(&total, &featured, &withTime, &undated)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Featured: %d\n", featured)
	fmt.Printf("With time: %d\n", withTime)
	fmt.Printf("Without date (never expire): %d\n", undated)
}
