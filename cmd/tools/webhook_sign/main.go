package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/service-checkout/internal/payment"
)

// webhook_sign signs a webhook payload the way the provider does so the
// local endpoint can be exercised. With -url the signed request is sent.
// Exit code 0 = ok, 1 = delivery rejected, 2 = usage or I/O error.
func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("REVOLUT_WEBHOOK_SECRET"), "webhook signing secret")
	file := flag.String("file", "", "payload file (default stdin)")
	data := flag.String("data", "", "inline payload")
	ts := flag.String("timestamp", "", "timestamp to sign (default now, unix ms)")
	target := flag.String("url", "", "POST the signed payload to this URL")
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fail("webhook_sign: -secret or REVOLUT_WEBHOOK_SECRET is required")
	}
	payload, err := readPayload(*data, *file)
	if err != nil {
		fail("webhook_sign: %v", err)
	}
	timestamp := *ts
	if timestamp == "" {
		timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	signature := payment.SignPayload(*secret, string(payload), timestamp)

	if *target == "" {
		fmt.Printf("X-Timestamp: %s\nX-Signature: %s\n", timestamp, signature)
		return
	}

	req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(payload))
	if err != nil {
		fail("webhook_sign: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", signature)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fail("webhook_sign: deliver: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	fmt.Printf("%s\n%s\n", resp.Status, strings.TrimSpace(string(body)))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func readPayload(inline, path string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case path != "":
		return os.ReadFile(path)
	default:
		return io.ReadAll(os.Stdin)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
