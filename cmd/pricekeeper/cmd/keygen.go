package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallyhq/pricekeeper/internal/core/auth"
	"github.com/tallyhq/pricekeeper/internal/core/config"
	"github.com/tallyhq/pricekeeper/internal/core/db"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Provision an API key for a tenant",
	Long: `Generates an API key, stores its HMAC hash, and prints the key once.
The plaintext key is never stored; losing it means provisioning a new one.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().String("tenant", "", "tenant identifier (required)")
	keygenCmd.Flags().String("secret-id", "", "HMAC secret to sign with (defaults to the only configured secret)")
	keygenCmd.MarkFlagRequired("tenant")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	secretID, _ := cmd.Flags().GetString("secret-id")

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set PK_HMAC_SECRET environment variable)")
	}

	if secretID == "" {
		if len(secrets) > 1 {
			return fmt.Errorf("multiple HMAC secrets configured, pick one with --secret-id")
		}
		for id := range secrets {
			secretID = id
		}
	}
	secret, ok := secrets[secretID]
	if !ok {
		return fmt.Errorf("secret_id %q not found in environment", secretID)
	}

	randomData := make([]byte, 32)
	if _, err := rand.Read(randomData); err != nil {
		return fmt.Errorf("failed to generate random data: %w", err)
	}

	apiKey := auth.FormatAPIKey(secretID, hex.EncodeToString(randomData))
	keyHash := auth.ComputeHMAC(secret, apiKey)

	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	apiKeyID := uuid.Must(uuid.NewV7()).String()
	createdAt := time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)

	if _, err := queries.Exec("create-api-key", apiKeyID, tenantID, keyHash, createdAt); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("api_key_id: %s\n", apiKeyID)
	fmt.Printf("tenant_id:  %s\n", tenantID)
	fmt.Printf("api_key:    %s\n", apiKey)
	fmt.Println("\nStore this key now. It cannot be recovered.")
	return nil
}
