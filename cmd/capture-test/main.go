// capture-test runs one capture sequence against a configured device and
// prints the result. Useful for verifying credentials and device wiring
// without starting the full service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"stcam/internal/capture"
	"stcam/internal/logging"
	"stcam/internal/output"
	"stcam/internal/smartthings"
	"stcam/internal/token"
)

func main() {
	tokenFile := flag.String("token-file", "token.txt", "Path to the credential record file")
	deviceID := flag.String("device", "", "SmartThings device ID (required)")
	apiBase := flag.String("api-base", smartthings.DefaultAPIBase, "SmartThings API base URL")
	outputDir := flag.String("output", ".", "Directory for the image and prompt document")
	settle := flag.Int("settle", 3, "Settle delay in seconds between command and status")
	caps := flag.Bool("caps", false, "Only fetch and print device capabilities")
	flag.Parse()

	if *deviceID == "" {
		log.Fatal("Error: -device is required\n\n" +
			"The device ID is listed for your camera at https://my.smartthings.com\n" +
			"under the location's rooms, or in the Samsung Developer Workspace.\n")
	}

	logger := logging.NewLogger(logging.LoggerConfig{Format: "text", Level: slog.LevelInfo})

	client := smartthings.NewClient(0, logger)
	manager, err := token.NewManager(token.ManagerConfig{
		StorePath: *tokenFile,
	}, client, logger)
	if err != nil {
		log.Fatalf("Failed to load token file: %v", err)
	}

	handle := smartthings.Handle{DeviceID: *deviceID, APIBase: *apiBase}

	controller := capture.NewController(capture.ControllerConfig{
		SettleDelay: time.Duration(*settle) * time.Second,
		OutputDir:   *outputDir,
	}, client, manager, capture.RealClock{}, logger)

	ctx := context.Background()

	if *caps {
		device, err := controller.Capabilities(ctx, handle)
		if err != nil {
			log.Fatalf("Failed to fetch capabilities: %v", err)
		}
		fmt.Printf("Device: %s (%s)\n", device.Label, device.DeviceID)
		for _, component := range device.Components {
			fmt.Printf("  component %s:\n", component.ID)
			for _, capability := range component.Capabilities {
				fmt.Printf("    %s (v%d)\n", capability.ID, capability.Version)
			}
		}
		return
	}

	controller.SetWriter(output.NewWriter(*outputDir, "", false))

	res := controller.Capture(ctx, handle)
	if res.Err != nil {
		fmt.Printf("Capture failed (%s): %v\n", res.Outcome(), res.Err)
		os.Exit(1)
	}

	fmt.Printf("Capture %s complete in %s\n", res.CaptureID, res.FinishedAt.Sub(res.StartedAt))
	fmt.Printf("  image:  %s\n", res.ImagePath)
	fmt.Printf("  prompt: %s\n", res.PromptPath)
}
