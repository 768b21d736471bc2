package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/transferengine/internal/adapter/http/dto"
	"github.com/iho/transferengine/internal/adapter/http/middleware"
	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/infrastructure/auth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	baseURL string
	timeout time.Duration
	owner   string
	role    string
	token   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "transferctl",
		Short:        "Transfer engine CLI tool",
		Long:         `A command line interface for submitting and inspecting transfers.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the transfer engine API")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Request timeout")
	flags.StringVar(&opts.owner, "owner", os.Getenv("TRANSFER_OWNER"), "Caller owner ID (header identity)")
	flags.StringVar(&opts.role, "role", string(domain.RoleCustomer), "Caller role (header identity)")
	flags.StringVar(&opts.token, "token", os.Getenv("TRANSFER_TOKEN"), "Bearer token; overrides --owner and --role")

	rootCmd.AddCommand(
		newTransferCmd(opts),
		newAccountCmd(opts),
		newAdminCmd(opts),
		newTokenCmd(opts),
	)
	return rootCmd
}

func newTransferCmd(opts *options) *cobra.Command {
	transferCmd := &cobra.Command{Use: "transfer", Short: "Transfer operations"}

	var from, to, amount, memo, key string
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if key == "" {
				key = uuid.NewString()
			}
			req := dto.SubmitTransferRequest{
				SourceAccountID:      from,
				DestinationAccountID: to,
				Amount:               value,
				Memo:                 memo,
				IdempotencyKey:       key,
			}
			return opts.do(cmd, http.MethodPost, "/api/v1/transfers", req)
		},
	}
	submitCmd.Flags().StringVar(&from, "from", "", "Source account ID")
	submitCmd.Flags().StringVar(&to, "to", "", "Destination account ID")
	submitCmd.Flags().StringVar(&amount, "amount", "", "Amount to move")
	submitCmd.Flags().StringVar(&memo, "memo", "", "Free-form memo")
	submitCmd.Flags().StringVar(&key, "key", "", "Idempotency key (random UUID when empty)")
	_ = submitCmd.MarkFlagRequired("from")
	_ = submitCmd.MarkFlagRequired("to")
	_ = submitCmd.MarkFlagRequired("amount")

	var byKey, history bool
	statusCmd := &cobra.Command{
		Use:   "status <id|key>",
		Short: "Show a transfer and its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := url.PathEscape(args[0])
			switch {
			case byKey:
				return opts.do(cmd, http.MethodGet, "/api/v1/transfers/by-key/"+id, nil)
			case history:
				return opts.do(cmd, http.MethodGet, "/api/v1/transfers/"+id+"/history", nil)
			default:
				return opts.do(cmd, http.MethodGet, "/api/v1/transfers/"+id, nil)
			}
		},
	}
	statusCmd.Flags().BoolVar(&byKey, "by-key", false, "Look the transfer up by idempotency key")
	statusCmd.Flags().BoolVar(&history, "history", false, "Include the state transition history")

	postingsCmd := &cobra.Command{
		Use:   "postings <id>",
		Short: "List the postings of a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.do(cmd, http.MethodGet, "/api/v1/transfers/"+url.PathEscape(args[0])+"/postings", nil)
		},
	}

	transferCmd.AddCommand(submitCmd, statusCmd, postingsCmd)
	return transferCmd
}

func newAccountCmd(opts *options) *cobra.Command {
	accountCmd := &cobra.Command{Use: "accounts", Short: "Account operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List visible accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.do(cmd, http.MethodGet, "/api/v1/accounts", nil)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.do(cmd, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil)
		},
	}

	var limit, offset int
	postingsCmd := &cobra.Command{
		Use:   "postings <id>",
		Short: "List the postings of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/accounts/%s/postings?limit=%d&offset=%d", url.PathEscape(args[0]), limit, offset)
			return opts.do(cmd, http.MethodGet, path, nil)
		},
	}
	postingsCmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	postingsCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var ownerID, accountType, deposit string
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			initial, err := decimal.NewFromString(deposit)
			if err != nil {
				return fmt.Errorf("invalid deposit %q: %w", deposit, err)
			}
			req := dto.OpenAccountRequest{
				OwnerID:        ownerID,
				Type:           strings.ToUpper(accountType),
				InitialDeposit: initial,
			}
			return opts.do(cmd, http.MethodPost, "/api/v1/admin/accounts", req)
		},
	}
	openCmd.Flags().StringVar(&ownerID, "owner-id", "", "Owner of the new account")
	openCmd.Flags().StringVar(&accountType, "type", string(domain.AccountTypeCurrent), "Account type")
	openCmd.Flags().StringVar(&deposit, "deposit", "0", "Initial deposit")
	_ = openCmd.MarkFlagRequired("owner-id")

	setStatusCmd := &cobra.Command{
		Use:   "set-status <id> <ACTIVE|FROZEN|CLOSED>",
		Short: "Change an account status (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.SetAccountStatusRequest{Status: strings.ToUpper(args[1])}
			return opts.do(cmd, http.MethodPut, "/api/v1/admin/accounts/"+url.PathEscape(args[0])+"/status", req)
		},
	}

	accountCmd.AddCommand(listCmd, getCmd, postingsCmd, openCmd, setStatusCmd)
	return accountCmd
}

func newAdminCmd(opts *options) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Operator commands"}

	recoveryCmd := &cobra.Command{
		Use:   "recovery",
		Short: "Run one recovery sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.do(cmd, http.MethodPost, "/api/v1/admin/recovery", nil)
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check ledger and journal consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.call(cmd.Context(), http.MethodGet, "/api/v1/admin/reconciliation", nil)
			if err != nil {
				return err
			}

			var report dto.ReconciliationResponse
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			printJSON(out, report)
			if !report.LedgerConsistent {
				fmt.Fprintln(out, "Consistency check FAILED")
				return errors.New("ledger inconsistent")
			}
			fmt.Fprintln(out, "Consistency check PASSED")
			return nil
		},
	}

	adminCmd.AddCommand(recoveryCmd, reconcileCmd)
	return adminCmd
}

func newTokenCmd(opts *options) *cobra.Command {
	var secret, owner string
	var ttl time.Duration

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing (role from --role)",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := auth.NewJWTManager(secret, ttl)
			token, err := manager.Generate(&domain.User{ID: owner, Role: domain.Role(opts.role)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	tokenCmd.Flags().StringVar(&owner, "owner-id", "", "Owner ID claim")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("owner-id")

	return tokenCmd
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, strings.TrimSpace(e.Body))
}

// do performs the request and pretty-prints the JSON response.
func (o *options) do(cmd *cobra.Command, method, path string, payload any) error {
	body, err := o.call(cmd.Context(), method, path, payload)
	var apiErr *apiError
	if err != nil && !errors.As(err, &apiErr) {
		return err
	}

	var decoded any
	if json.Unmarshal(body, &decoded) == nil {
		printJSON(cmd.OutOrStdout(), decoded)
	} else if len(body) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), truncate(string(body), 512))
	}
	return err
}

func (o *options) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(o.baseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	} else {
		req.Header.Set(middleware.OwnerIDHeader, o.owner)
		req.Header.Set(middleware.RoleHeader, o.role)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return body, &apiError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func printJSON(w io.Writer, v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(encoded))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
