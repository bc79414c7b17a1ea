package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Dev tool: drives a payment callback or a signed app/uninstalled webhook at
// a locally running server.
func main() {
	base := flag.String("base", "http://localhost:8080", "Server base URL")
	mode := flag.String("mode", "callback", "callback | uninstall")
	txID := flag.String("transaction-id", "", "OMT transaction id (callback mode)")
	status := flag.String("status", "success", "Callback status (success, failed)")
	shop := flag.String("shop", "dev-store.myshopify.com", "Shop domain (uninstall mode)")
	secret := flag.String("secret", os.Getenv("SHOPIFY_API_SECRET"), "Shopify API secret (uninstall mode)")
	dryRun := flag.Bool("dry-run", false, "Print the request instead of sending")

	flag.Parse()

	switch *mode {
	case "callback":
		if *txID == "" {
			fmt.Fprintln(os.Stderr, "Error: -transaction-id is required in callback mode")
			os.Exit(1)
		}
		q := url.Values{}
		q.Set("transaction_id", *txID)
		q.Set("status", *status)
		target := *base + "/api/payments/callback?" + q.Encode()

		if *dryRun {
			fmt.Println("GET", target)
			return
		}
		resp, err := noRedirectClient().Get(target)
		exitOnErr(err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("%d %s\nLocation: %s\n%s\n", resp.StatusCode, resp.Status, resp.Header.Get("Location"), body)

	case "uninstall":
		if *secret == "" {
			fmt.Fprintln(os.Stderr, "Error: secret not provided and SHOPIFY_API_SECRET not set")
			os.Exit(1)
		}
		payload := []byte(fmt.Sprintf(`{"domain":%q}`, *shop))

		mac := hmac.New(sha256.New, []byte(*secret))
		mac.Write(payload)
		sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		target := *base + "/api/shopify/webhooks/app-uninstalled"
		if *dryRun {
			fmt.Println("POST", target)
			fmt.Println("X-Shopify-Hmac-Sha256:", sig)
			fmt.Println(string(payload))
			return
		}

		req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
		exitOnErr(err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Shopify-Hmac-Sha256", sig)

		resp, err := http.DefaultClient.Do(req)
		exitOnErr(err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("%d %s\n%s\n", resp.StatusCode, resp.Status, body)

	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
