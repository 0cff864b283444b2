package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-classify/client"
)

func main() {
	var (
		deviceID int
		endpoint string
		interval time.Duration
		once     bool
	)
	flag.IntVar(&deviceID, "device", 0, "Video capture device ID")
	flag.StringVar(&endpoint, "server", "http://localhost:8080", "Classification server URL")
	flag.DurationVar(&interval, "interval", 2*time.Second, "Time between classified frames")
	flag.BoolVar(&once, "once", false, "Classify a single frame and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, deviceID, endpoint, interval, once); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, deviceID int, endpoint string, interval time.Duration, once bool) error {
	// open webcam
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return fmt.Errorf("cannot open device %d: %w", deviceID, err)
	}
	defer webcam.Close()

	// prepare image matrix
	img := gocv.NewMat()
	defer img.Close()

	c := client.NewClassifyClient(endpoint, nil)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("start reading camera device: %v\n", deviceID)
	for {
		if ok := webcam.Read(&img); !ok {
			return fmt.Errorf("cannot read device %d", deviceID)
		}
		if img.Empty() {
			continue
		}

		if err := classifyFrame(ctx, c, img); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func classifyFrame(ctx context.Context, c *client.ClassifyClient, img gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return fmt.Errorf("cannot encode frame: %w", err)
	}
	defer buf.Close()

	resp, err := c.ClassifyJPEG(ctx, buf.GetBytes())
	if err != nil {
		return err
	}

	fmt.Printf("%s  ", time.Now().Format(time.TimeOnly))
	for i, p := range resp.Predictions {
		if i > 0 {
			fmt.Print(" | ")
		}
		fmt.Printf("%s %.2f%%", p.Label, p.Confidence*100)
	}
	fmt.Printf("  (%s)\n", resp.ImageURL)
	return nil
}
