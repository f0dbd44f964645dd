// Command example_gateway demonstrates calling the SAP Digital
// Manufacturing gateway from a downstream service using the sdmgw client.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sdmg-platform/gateway/pkg/client/go/sdmgw"
)

func main() {
	gatewayURL := os.Getenv("SDMGW_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:3000"
		log.Printf("SDMGW_URL not set, using default: %s", gatewayURL)
	}
	apiKey := os.Getenv("SDMGW_API_KEY")
	if apiKey == "" {
		log.Fatal("SDMGW_API_KEY must be set")
	}

	client := sdmgw.NewClient(gatewayURL, apiKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthy, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}
	fmt.Printf("gateway healthy: %v\n", healthy)

	resp, err := client.QueryAutoResolve(ctx, []string{"list-resources", "get-resource-detail"}, map[string]string{
		"plant": "1710",
	})
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	fmt.Printf("query result: %s\n", resp.Data)

	useCaseResp, err := client.UseCase(ctx, "daily-production-summary", map[string]string{
		"plant": "1710",
		"shift": "A",
	})
	if err != nil {
		log.Fatalf("use case failed: %v", err)
	}
	fmt.Printf("use case result: %s\n", useCaseResp.Data)
}
