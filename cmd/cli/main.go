package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/interbank/internal/keys"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "interbank-cli",
		Short: "Interbank settlement CLI tool",
		Long:  `A command line interface for operating an interbank settlement node.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the settlement API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(keysCommand(), accountCommand(), transferCommand(), peerCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func keysCommand() *cobra.Command {
	var keyDir, issuer string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Signing key operations",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the signing key pair if absent",
		Run: func(cmd *cobra.Command, args []string) {
			custodian, err := keys.NewCustodian(keyDir, issuer, zerolog.Nop())
			if err != nil {
				fmt.Printf("Failed to prepare signing keys: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Signing key ready (kid: %s)\n", custodian.KeyID())
		},
	}
	generateCmd.Flags().StringVar(&keyDir, "dir", "keys", "Directory holding the key pair")
	generateCmd.Flags().StringVar(&issuer, "issuer", "Interbank", "Issuer name embedded in signed payloads")

	cmd.AddCommand(generateCmd)

	return cmd
}

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var owner, currency, balance string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new account",
		Run: func(cmd *cobra.Command, args []string) {
			postJSON("/api/v1/accounts", map[string]any{
				"owner_name":      owner,
				"currency":        currency,
				"initial_balance": balance,
			})
		},
	}
	createCmd.Flags().StringVar(&owner, "owner", "", "Account owner name")
	createCmd.Flags().StringVar(&currency, "currency", "EUR", "Account currency")
	createCmd.Flags().StringVar(&balance, "balance", "0", "Opening balance")
	createCmd.MarkFlagRequired("owner")

	getCmd := &cobra.Command{
		Use:   "get <account-id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/accounts/" + args[0])
		},
	}

	cmd.AddCommand(createCmd, getCmd)

	return cmd
}

func transferCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer operations",
	}

	var from, to, amount, currency, explanation string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transfer (local or cross-institution)",
		Run: func(cmd *cobra.Command, args []string) {
			postJSON("/api/v1/transfers", map[string]any{
				"source_account":      from,
				"destination_account": to,
				"amount":              amount,
				"currency":            currency,
				"explanation":         explanation,
			})
		},
	}
	createCmd.Flags().StringVar(&from, "from", "", "Source account ID")
	createCmd.Flags().StringVar(&to, "to", "", "Destination account ID")
	createCmd.Flags().StringVar(&amount, "amount", "", "Amount to transfer")
	createCmd.Flags().StringVar(&currency, "currency", "EUR", "Transfer currency")
	createCmd.Flags().StringVar(&explanation, "explanation", "", "Free-text explanation")
	createCmd.MarkFlagRequired("from")
	createCmd.MarkFlagRequired("to")
	createCmd.MarkFlagRequired("amount")

	getCmd := &cobra.Command{
		Use:   "get <transfer-id>",
		Short: "Show a transfer",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/transfers/" + args[0])
		},
	}

	cmd.AddCommand(createCmd, getCmd)

	return cmd
}

func peerCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Bank directory operations",
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <routing-prefix>",
		Short: "Resolve a peer institution by routing prefix",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := "/api/v1/peers/" + args[0]
			if force {
				path += "?force=true"
			}
			getJSON(path)
		},
	}
	resolveCmd.Flags().BoolVar(&force, "force", false, "Bypass the directory cache")

	cmd.AddCommand(resolveCmd)

	return cmd
}

func getJSON(path string) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp)
}

func postJSON(path string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error encoding request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp)
}

func printResponse(resp *http.Response) {
	body, _ := io.ReadAll(resp.Body)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Printf("Status: %d\n%s\n", resp.StatusCode, string(body))
		return
	}

	fmt.Printf("Status: %d\n%s\n", resp.StatusCode, pretty.String())

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
